package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CreateExpenseInput holds the fields for a new expense
type CreateExpenseInput struct {
	CategoryID uuid.UUID
	Name       string
	Amount     decimal.Decimal
	Schedule   domain.Schedule
	Notes      *string
	RecordedAt *time.Time
}

// CreateContributionInput holds the fields for a new contribution
type CreateContributionInput struct {
	CategoryID uuid.UUID
	Name       string
	Amount     decimal.Decimal
	IsFixed    bool
	Notes      *string
	RecordedAt *time.Time
}

// LedgerService manages the expenses and contributions recorded in a period
type LedgerService struct {
	periodRepo       domain.PeriodRepository
	expenseRepo      domain.ExpenseRepository
	contributionRepo domain.ContributionRepository
	categoryRepo     domain.CategoryRepository
	aggregator       *LedgerAggregator
	publisher        websocket.EventPublisher
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	periodRepo domain.PeriodRepository,
	expenseRepo domain.ExpenseRepository,
	contributionRepo domain.ContributionRepository,
	categoryRepo domain.CategoryRepository,
	aggregator *LedgerAggregator,
	publisher websocket.EventPublisher,
) *LedgerService {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	return &LedgerService{
		periodRepo:       periodRepo,
		expenseRepo:      expenseRepo,
		contributionRepo: contributionRepo,
		categoryRepo:     categoryRepo,
		aggregator:       aggregator,
		publisher:        publisher,
	}
}

// CreateExpense records an expense in an open period
func (s *LedgerService) CreateExpense(ctx context.Context, ownerID, periodID uuid.UUID, input CreateExpenseInput) (*domain.Expense, error) {
	name := strings.TrimSpace(input.Name)
	if err := validateEntry(name, input.Amount, input.Notes); err != nil {
		return nil, err
	}
	if err := domain.ValidateSchedule(input.Schedule); err != nil {
		return nil, err
	}

	period, err := s.writablePeriod(ctx, ownerID, periodID)
	if err != nil {
		return nil, err
	}
	if _, err := s.categoryRepo.GetByID(ctx, ownerID, input.CategoryID); err != nil {
		return nil, err
	}

	expense := &domain.Expense{
		OwnerID:    ownerID,
		PeriodID:   periodID,
		CategoryID: input.CategoryID,
		Name:       name,
		Amount:     input.Amount,
		Schedule:   input.Schedule,
		Notes:      input.Notes,
	}
	if input.RecordedAt != nil {
		expense.RecordedAt = *input.RecordedAt
	}

	created, err := s.expenseRepo.Create(ctx, expense)
	if err != nil {
		return nil, err
	}
	if err := s.refreshTotalSpent(ctx, period); err != nil {
		return nil, err
	}
	s.publisher.Publish(ownerID, websocket.ExpenseCreated(created))
	return created, nil
}

// GetExpense retrieves one of the owner's expenses
func (s *LedgerService) GetExpense(ctx context.Context, ownerID, id uuid.UUID) (*domain.Expense, error) {
	return s.expenseRepo.GetByID(ctx, ownerID, id)
}

// ListExpenses lists the expenses of a period
func (s *LedgerService) ListExpenses(ctx context.Context, ownerID, periodID uuid.UUID, filter domain.ExpenseFilter) ([]*domain.Expense, error) {
	if _, err := s.periodRepo.GetByID(ctx, ownerID, periodID); err != nil {
		return nil, err
	}
	return s.expenseRepo.ListByPeriod(ctx, ownerID, periodID, filter)
}

// UpdateExpense changes name, amount or notes of an expense in an open period
func (s *LedgerService) UpdateExpense(ctx context.Context, ownerID, id uuid.UUID, patch domain.EntryPatch) (*domain.Expense, error) {
	patch = trimPatch(patch)
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	expense, err := s.expenseRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return expense, nil
	}
	period, err := s.writablePeriod(ctx, ownerID, expense.PeriodID)
	if err != nil {
		return nil, err
	}

	updated, err := s.expenseRepo.Update(ctx, ownerID, id, patch)
	if err != nil {
		return nil, err
	}
	if patch.Amount != nil {
		if err := s.refreshTotalSpent(ctx, period); err != nil {
			return nil, err
		}
	}
	s.publisher.Publish(ownerID, websocket.ExpenseUpdated(updated))
	return updated, nil
}

// DeleteExpense removes an expense from an open period
func (s *LedgerService) DeleteExpense(ctx context.Context, ownerID, id uuid.UUID) error {
	expense, err := s.expenseRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	period, err := s.writablePeriod(ctx, ownerID, expense.PeriodID)
	if err != nil {
		return err
	}
	if err := s.expenseRepo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.refreshTotalSpent(ctx, period); err != nil {
		return err
	}
	s.publisher.Publish(ownerID, websocket.ExpenseDeleted(expense))
	return nil
}

// CreateContribution records a contribution in an open period
func (s *LedgerService) CreateContribution(ctx context.Context, ownerID, periodID uuid.UUID, input CreateContributionInput) (*domain.Contribution, error) {
	name := strings.TrimSpace(input.Name)
	if err := validateEntry(name, input.Amount, input.Notes); err != nil {
		return nil, err
	}
	if _, err := s.writablePeriod(ctx, ownerID, periodID); err != nil {
		return nil, err
	}
	if _, err := s.categoryRepo.GetByID(ctx, ownerID, input.CategoryID); err != nil {
		return nil, err
	}

	contribution := &domain.Contribution{
		OwnerID:    ownerID,
		PeriodID:   periodID,
		CategoryID: input.CategoryID,
		Name:       name,
		Amount:     input.Amount,
		IsFixed:    input.IsFixed,
		Notes:      input.Notes,
	}
	if input.RecordedAt != nil {
		contribution.RecordedAt = *input.RecordedAt
	}

	created, err := s.contributionRepo.Create(ctx, contribution)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ownerID, websocket.ContributionCreated(created))
	return created, nil
}

// GetContribution retrieves one of the owner's contributions
func (s *LedgerService) GetContribution(ctx context.Context, ownerID, id uuid.UUID) (*domain.Contribution, error) {
	return s.contributionRepo.GetByID(ctx, ownerID, id)
}

// ListContributions lists the contributions of a period
func (s *LedgerService) ListContributions(ctx context.Context, ownerID, periodID uuid.UUID, filter domain.ContributionFilter) ([]*domain.Contribution, error) {
	if _, err := s.periodRepo.GetByID(ctx, ownerID, periodID); err != nil {
		return nil, err
	}
	return s.contributionRepo.ListByPeriod(ctx, ownerID, periodID, filter)
}

// UpdateContribution changes name, amount or notes of a contribution in an open period
func (s *LedgerService) UpdateContribution(ctx context.Context, ownerID, id uuid.UUID, patch domain.EntryPatch) (*domain.Contribution, error) {
	patch = trimPatch(patch)
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	contribution, err := s.contributionRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return contribution, nil
	}
	if _, err := s.writablePeriod(ctx, ownerID, contribution.PeriodID); err != nil {
		return nil, err
	}

	updated, err := s.contributionRepo.Update(ctx, ownerID, id, patch)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ownerID, websocket.ContributionUpdated(updated))
	return updated, nil
}

// DeleteContribution removes a contribution from an open period
func (s *LedgerService) DeleteContribution(ctx context.Context, ownerID, id uuid.UUID) error {
	contribution, err := s.contributionRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if _, err := s.writablePeriod(ctx, ownerID, contribution.PeriodID); err != nil {
		return err
	}
	if err := s.contributionRepo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.publisher.Publish(ownerID, websocket.ContributionDeleted(contribution))
	return nil
}

// writablePeriod loads a period that still accepts ledger writes
func (s *LedgerService) writablePeriod(ctx context.Context, ownerID, periodID uuid.UUID) (*domain.Period, error) {
	period, err := s.periodRepo.GetByID(ctx, ownerID, periodID)
	if err != nil {
		return nil, err
	}
	if period.IsClosed() {
		return nil, domain.ErrPeriodClosed
	}
	return period, nil
}

// refreshTotalSpent keeps a credit cycle's total spent equal to the sum of its expenses
func (s *LedgerService) refreshTotalSpent(ctx context.Context, period *domain.Period) error {
	_, err := syncTotalSpent(ctx, s.periodRepo, s.aggregator, s.publisher, period)
	return err
}

// syncTotalSpent recomputes a credit cycle's total spent from its expenses and persists it.
// Other kinds are returned unchanged.
func syncTotalSpent(
	ctx context.Context,
	periodRepo domain.PeriodRepository,
	aggregator *LedgerAggregator,
	publisher websocket.EventPublisher,
	period *domain.Period,
) (*domain.Period, error) {
	if period.Kind != domain.PeriodKindCreditCycle {
		return period, nil
	}
	total, err := aggregator.SumExpenses(ctx, period.OwnerID, period.ID, nil)
	if err != nil {
		return nil, err
	}
	updated, err := periodRepo.Update(ctx, period.OwnerID, period.ID, domain.PeriodPatch{TotalSpent: &total})
	if err != nil {
		return nil, fmt.Errorf("refresh total spent: %w", err)
	}
	log.Debug().
		Str("owner_id", period.OwnerID.String()).
		Str("period_id", period.ID.String()).
		Str("total_spent", total.StringFixed(2)).
		Msg("Credit cycle total spent refreshed")
	publisher.Publish(period.OwnerID, websocket.PeriodUpdated(updated))
	return updated, nil
}

func validateEntry(name string, amount decimal.Decimal, notes *string) error {
	if err := domain.ValidateEntryName(name); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if notes != nil && len(*notes) > domain.MaxEntryNotesLength {
		return domain.ErrNotesTooLong
	}
	return nil
}

func trimPatch(patch domain.EntryPatch) domain.EntryPatch {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	return patch
}
