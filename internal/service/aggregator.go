package service

import (
	"context"
	"fmt"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// CategoryTotals is the ledger position of one category inside one period
type CategoryTotals struct {
	Expenses      decimal.Decimal
	Contributions decimal.Decimal
	RealTotal     decimal.Decimal
}

// LedgerAggregator answers sum queries over the ledger stores
type LedgerAggregator struct {
	expenseRepo      domain.ExpenseRepository
	contributionRepo domain.ContributionRepository
}

// NewLedgerAggregator creates a new LedgerAggregator
func NewLedgerAggregator(expenseRepo domain.ExpenseRepository, contributionRepo domain.ContributionRepository) *LedgerAggregator {
	return &LedgerAggregator{
		expenseRepo:      expenseRepo,
		contributionRepo: contributionRepo,
	}
}

// SumExpenses sums a period's expenses, optionally restricted to one category
func (a *LedgerAggregator) SumExpenses(ctx context.Context, ownerID, periodID uuid.UUID, categoryID *uuid.UUID) (decimal.Decimal, error) {
	total, err := a.expenseRepo.SumByPeriod(ctx, ownerID, periodID, categoryID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}

// SumContributions sums a period's contributions, optionally restricted to one category
func (a *LedgerAggregator) SumContributions(ctx context.Context, ownerID, periodID uuid.UUID, categoryID *uuid.UUID) (decimal.Decimal, error) {
	total, err := a.contributionRepo.SumByPeriod(ctx, ownerID, periodID, categoryID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum contributions: %w", err)
	}
	return total, nil
}

// RealTotal returns expenses minus contributions for a category
func (a *LedgerAggregator) RealTotal(ctx context.Context, ownerID, periodID, categoryID uuid.UUID) (decimal.Decimal, error) {
	totals, err := a.CategoryTotals(ctx, ownerID, periodID, categoryID)
	if err != nil {
		return decimal.Zero, err
	}
	return totals.RealTotal, nil
}

// CategoryTotals fetches both sums for a category concurrently
func (a *LedgerAggregator) CategoryTotals(ctx context.Context, ownerID, periodID, categoryID uuid.UUID) (CategoryTotals, error) {
	var expenses, contributions decimal.Decimal

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = a.SumExpenses(gctx, ownerID, periodID, &categoryID)
		return err
	})
	g.Go(func() error {
		var err error
		contributions, err = a.SumContributions(gctx, ownerID, periodID, &categoryID)
		return err
	})
	if err := g.Wait(); err != nil {
		return CategoryTotals{}, err
	}

	return CategoryTotals{
		Expenses:      expenses,
		Contributions: contributions,
		RealTotal:     expenses.Sub(contributions),
	}, nil
}
