package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LiquidityService derives per-category totals and the liquidity figure of a period
type LiquidityService struct {
	periodRepo domain.PeriodRepository
	aggregator *LedgerAggregator
	categories *CategoryService
}

// NewLiquidityService creates a new LiquidityService
func NewLiquidityService(periodRepo domain.PeriodRepository, aggregator *LedgerAggregator, categories *CategoryService) *LiquidityService {
	return &LiquidityService{
		periodRepo: periodRepo,
		aggregator: aggregator,
		categories: categories,
	}
}

// ComputeLiquidity builds the summary of a period. Liquidity figures are only derived for
// standard periods; credit cycles get their category rows with zero liquidity.
func (s *LiquidityService) ComputeLiquidity(ctx context.Context, ownerID, periodID uuid.UUID) (*domain.LiquiditySummary, error) {
	period, err := s.periodRepo.GetByID(ctx, ownerID, periodID)
	if err != nil {
		return nil, err
	}
	categories, err := s.categories.EnsureDefaults(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	fixed := fixedFromCategories(categories)
	names := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	creditPeriod, err := s.creditPeriodFor(ctx, period)
	if err != nil {
		return nil, err
	}

	savings, err := s.aggregator.CategoryTotals(ctx, ownerID, period.ID, fixed.Savings)
	if err != nil {
		return nil, err
	}
	rent, err := s.aggregator.CategoryTotals(ctx, ownerID, period.ID, fixed.Rent)
	if err != nil {
		return nil, err
	}
	liquidityTotals, err := s.aggregator.CategoryTotals(ctx, ownerID, period.ID, fixed.Liquidity)
	if err != nil {
		return nil, err
	}

	var credit CategoryTotals
	creditPeriodID := uuid.Nil
	if creditPeriod != nil {
		creditPeriodID = creditPeriod.ID
		if credit, err = s.aggregator.CategoryTotals(ctx, ownerID, creditPeriod.ID, fixed.Credit); err != nil {
			return nil, err
		}
	}

	creditGoal := period.Goals.CreditUsable
	summary := &domain.LiquiditySummary{
		Period: period,
		Categories: []domain.CategorySummary{
			categoryRow(fixed.Savings, domain.CategorySavings, names, period.ID, savings, goalPtr(savings.RealTotal)),
			categoryRow(fixed.Rent, domain.CategoryRent, names, period.ID, rent, goalPtr(rent.RealTotal)),
			categoryRow(fixed.Credit, domain.CategoryCredit, names, creditPeriodID, credit, &creditGoal),
			categoryRow(fixed.Liquidity, domain.CategoryLiquidity, names, period.ID, liquidityTotals, nil),
		},
		Debt:          decimal.Zero,
		BaseLiquidity: decimal.Zero,
		Liquidity:     decimal.Zero,
	}

	if period.Kind != domain.PeriodKindStandard {
		return summary, nil
	}

	debtPeriod, err := s.debtPeriodFor(ctx, period)
	if err != nil {
		return nil, err
	}
	if debtPeriod != nil {
		summary.Debt = debtPeriod.TotalSpent
		id := debtPeriod.ID
		summary.DebtPeriodID = &id
	}
	summary.BaseLiquidity, summary.Liquidity = liquidityFigures(period.Salary, savings.RealTotal, rent.RealTotal, summary.Debt, &liquidityTotals)
	return summary, nil
}

// debtPeriodFor returns the closed credit cycle whose bill falls due in the given month:
// the latest one ending strictly before the month starts
func (s *LiquidityService) debtPeriodFor(ctx context.Context, period *domain.Period) (*domain.Period, error) {
	before := period.StartDate
	debtPeriod, err := s.periodRepo.GetMostRecentlyClosed(ctx, period.OwnerID, domain.PeriodKindCreditCycle, &before)
	if err != nil {
		if errors.Is(err, domain.ErrPeriodNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get debt period: %w", err)
	}
	return debtPeriod, nil
}

// creditPeriodFor returns the credit cycle whose spending the credit row reports. It never
// creates a period.
func (s *LiquidityService) creditPeriodFor(ctx context.Context, period *domain.Period) (*domain.Period, error) {
	if period.Kind == domain.PeriodKindCreditCycle {
		return period, nil
	}
	active, err := s.periodRepo.GetActive(ctx, period.OwnerID, domain.PeriodKindCreditCycle)
	if err != nil {
		if errors.Is(err, domain.ErrPeriodNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active credit cycle: %w", err)
	}
	return active, nil
}

// liquidityFigures applies the liquidity formula. A nil liquidity total leaves liquidity equal to the base.
func liquidityFigures(salary, savings, rent, debt decimal.Decimal, liquidity *CategoryTotals) (decimal.Decimal, decimal.Decimal) {
	base := salary.Sub(savings).Sub(rent).Sub(debt)
	if liquidity == nil {
		return base, base
	}
	return base, base.Sub(liquidity.Expenses).Add(liquidity.Contributions)
}

func categoryRow(id uuid.UUID, slug domain.CategorySlug, names map[uuid.UUID]string, periodID uuid.UUID, totals CategoryTotals, goal *decimal.Decimal) domain.CategorySummary {
	return domain.CategorySummary{
		CategoryID:    id,
		Slug:          slug,
		Name:          names[id],
		PeriodID:      periodID,
		Expenses:      totals.Expenses,
		Contributions: totals.Contributions,
		RealTotal:     totals.RealTotal,
		Goal:          goal,
	}
}

func goalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
