package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RolloverResult summarizes one rollover run
type RolloverResult struct {
	SourceID            uuid.UUID `json:"sourceId"`
	DestinationID       uuid.UUID `json:"destinationId"`
	ExpensesCopied      int       `json:"expensesCopied"`
	ContributionsCopied int       `json:"contributionsCopied"`
	// AlreadyCopied counts entries a previous attempt had already copied
	AlreadyCopied int `json:"alreadyCopied"`
	// Exhausted counts temporal expenses that reached zero remaining cycles
	Exhausted int `json:"exhausted"`
}

// RolloverError reports copies that could not be written. The destination keeps
// every successful copy; re-running the rollover only writes the missing ones.
type RolloverError struct {
	PeriodID  uuid.UUID
	Attempted int
	Failed    int
	Err       error
}

func (e *RolloverError) Error() string {
	return fmt.Sprintf("rollover into period %s incomplete: %d of %d copies failed: %v",
		e.PeriodID, e.Failed, e.Attempted, e.Err)
}

// Unwrap exposes both the incomplete marker and the underlying failures
func (e *RolloverError) Unwrap() []error {
	return []error{domain.ErrRolloverIncomplete, e.Err}
}

// RolloverService copies recurring ledger entries from a closed period into its successor
type RolloverService struct {
	expenseRepo      domain.ExpenseRepository
	contributionRepo domain.ContributionRepository
}

// NewRolloverService creates a new RolloverService
func NewRolloverService(expenseRepo domain.ExpenseRepository, contributionRepo domain.ContributionRepository) *RolloverService {
	return &RolloverService{
		expenseRepo:      expenseRepo,
		contributionRepo: contributionRepo,
	}
}

// Rollover copies fixed expenses and contributions from source into destination.
// Source entries are never modified. Entries already copied into destination are skipped.
func (s *RolloverService) Rollover(ctx context.Context, source, destination *domain.Period) (*RolloverResult, error) {
	if source.OwnerID != destination.OwnerID || source.Kind != destination.Kind || source.ID == destination.ID {
		return nil, domain.ErrRolloverMismatch
	}
	if !source.IsClosed() {
		return nil, domain.ErrRolloverSourceOpen
	}
	if destination.IsClosed() {
		return nil, domain.ErrPeriodClosed
	}

	result := &RolloverResult{SourceID: source.ID, DestinationID: destination.ID}
	var failures []error
	attempted := 0

	expensePlan, err := s.planExpenses(ctx, source, destination)
	if err != nil {
		return nil, err
	}
	result.AlreadyCopied += expensePlan.alreadyCopied
	result.Exhausted += expensePlan.exhausted

	for _, entry := range expensePlan.copies {
		attempted++
		if _, err := s.expenseRepo.Create(ctx, entry); err != nil {
			if errors.Is(err, domain.ErrEntryAlreadyRolled) {
				result.AlreadyCopied++
				continue
			}
			failures = append(failures, fmt.Errorf("copy expense %s: %w", *entry.SourceEntryID, err))
			continue
		}
		result.ExpensesCopied++
	}

	contributionPlan, err := s.planContributions(ctx, source, destination)
	if err != nil {
		return nil, err
	}
	result.AlreadyCopied += contributionPlan.alreadyCopied

	for _, entry := range contributionPlan.copies {
		attempted++
		if _, err := s.contributionRepo.Create(ctx, entry); err != nil {
			if errors.Is(err, domain.ErrEntryAlreadyRolled) {
				result.AlreadyCopied++
				continue
			}
			failures = append(failures, fmt.Errorf("copy contribution %s: %w", *entry.SourceEntryID, err))
			continue
		}
		result.ContributionsCopied++
	}

	if len(failures) > 0 {
		log.Error().
			Err(errors.Join(failures...)).
			Str("owner_id", destination.OwnerID.String()).
			Str("period_id", destination.ID.String()).
			Int("failed", len(failures)).
			Int("attempted", attempted).
			Msg("Rollover incomplete")
		return result, &RolloverError{
			PeriodID:  destination.ID,
			Attempted: attempted,
			Failed:    len(failures),
			Err:       errors.Join(failures...),
		}
	}

	log.Info().
		Str("owner_id", destination.OwnerID.String()).
		Str("source_id", source.ID.String()).
		Str("period_id", destination.ID.String()).
		Int("expenses_copied", result.ExpensesCopied).
		Int("contributions_copied", result.ContributionsCopied).
		Int("already_copied", result.AlreadyCopied).
		Msg("Rollover completed")
	return result, nil
}

type expensePlan struct {
	copies        []*domain.Expense
	alreadyCopied int
	exhausted     int
}

type contributionPlan struct {
	copies        []*domain.Contribution
	alreadyCopied int
}

func (s *RolloverService) planExpenses(ctx context.Context, source, destination *domain.Period) (expensePlan, error) {
	fixed := domain.RecurrenceFixed
	sources, err := s.expenseRepo.ListByPeriod(ctx, source.OwnerID, source.ID, domain.ExpenseFilter{Recurrence: &fixed})
	if err != nil {
		return expensePlan{}, fmt.Errorf("list source expenses: %w", err)
	}
	existing, err := s.expenseRepo.ListByPeriod(ctx, destination.OwnerID, destination.ID, domain.ExpenseFilter{})
	if err != nil {
		return expensePlan{}, fmt.Errorf("list destination expenses: %w", err)
	}
	copied := make(map[uuid.UUID]bool, len(existing))
	for _, e := range existing {
		if e.SourceEntryID != nil {
			copied[*e.SourceEntryID] = true
		}
	}
	return planExpenseCopies(sources, copied, destination), nil
}

func (s *RolloverService) planContributions(ctx context.Context, source, destination *domain.Period) (contributionPlan, error) {
	fixed := true
	sources, err := s.contributionRepo.ListByPeriod(ctx, source.OwnerID, source.ID, domain.ContributionFilter{IsFixed: &fixed})
	if err != nil {
		return contributionPlan{}, fmt.Errorf("list source contributions: %w", err)
	}
	existing, err := s.contributionRepo.ListByPeriod(ctx, destination.OwnerID, destination.ID, domain.ContributionFilter{})
	if err != nil {
		return contributionPlan{}, fmt.Errorf("list destination contributions: %w", err)
	}
	copied := make(map[uuid.UUID]bool, len(existing))
	for _, c := range existing {
		if c.SourceEntryID != nil {
			copied[*c.SourceEntryID] = true
		}
	}
	return planContributionCopies(sources, copied, destination), nil
}

// planExpenseCopies decides which expenses are carried into destination and with which schedule
func planExpenseCopies(sources []*domain.Expense, copied map[uuid.UUID]bool, destination *domain.Period) expensePlan {
	var plan expensePlan
	for _, src := range sources {
		var next domain.Schedule
		switch sched := src.Schedule.(type) {
		case domain.Permanent:
			next = sched
		case domain.Temporal:
			if sched.RemainingCycles <= 0 {
				plan.exhausted++
				continue
			}
			next = domain.Temporal{RemainingCycles: sched.RemainingCycles - 1}
		default:
			continue
		}
		if copied[src.ID] {
			plan.alreadyCopied++
			continue
		}
		sourceID := src.ID
		plan.copies = append(plan.copies, &domain.Expense{
			OwnerID:       destination.OwnerID,
			PeriodID:      destination.ID,
			CategoryID:    src.CategoryID,
			Name:          src.Name,
			Amount:        src.Amount,
			Schedule:      next,
			Notes:         copyString(src.Notes),
			SourceEntryID: &sourceID,
			RecordedAt:    destination.StartDate,
		})
	}
	return plan
}

// planContributionCopies carries every fixed contribution into destination unchanged
func planContributionCopies(sources []*domain.Contribution, copied map[uuid.UUID]bool, destination *domain.Period) contributionPlan {
	var plan contributionPlan
	for _, src := range sources {
		if !src.IsFixed {
			continue
		}
		if copied[src.ID] {
			plan.alreadyCopied++
			continue
		}
		sourceID := src.ID
		plan.copies = append(plan.copies, &domain.Contribution{
			OwnerID:       destination.OwnerID,
			PeriodID:      destination.ID,
			CategoryID:    src.CategoryID,
			Name:          src.Name,
			Amount:        src.Amount,
			IsFixed:       true,
			Notes:         copyString(src.Notes),
			SourceEntryID: &sourceID,
			RecordedAt:    destination.StartDate,
		})
	}
	return plan
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
