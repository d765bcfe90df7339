package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/util"
	"github.com/dafibh/ledgerflow/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// CreatePeriodInput holds the fields for a manually created period.
// Explicit bounds win over Reference; with neither, the calendar period containing now is used.
type CreatePeriodInput struct {
	Kind      domain.PeriodKind
	State     domain.PeriodState
	StartDate *time.Time
	EndDate   *time.Time
	Reference *time.Time
	Salary    decimal.Decimal
	Goals     domain.CategoryGoals
}

// RepairReport describes what RepairActive changed
type RepairReport struct {
	Period          *domain.Period     `json:"period"`
	BoundsFixed     bool               `json:"boundsFixed"`
	SalaryRecovered bool               `json:"salaryRecovered"`
	GoalsRecovered  bool               `json:"goalsRecovered"`
	PredecessorID   *uuid.UUID         `json:"predecessorId,omitempty"`
	Rollover        *RolloverResult    `json:"rollover,omitempty"`
	Templates       *MaterializeResult `json:"templates,omitempty"`
}

// PeriodService owns the period lifecycle: lazy creation, closing, updates and rollover
type PeriodService struct {
	periodRepo domain.PeriodRepository
	rollover   *RolloverService
	aggregator *LedgerAggregator
	templates  *TemplateService
	publisher  websocket.EventPublisher
	group      singleflight.Group
	now        func() time.Time
}

// NewPeriodService creates a new PeriodService
func NewPeriodService(
	periodRepo domain.PeriodRepository,
	rollover *RolloverService,
	aggregator *LedgerAggregator,
	publisher websocket.EventPublisher,
) *PeriodService {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	return &PeriodService{
		periodRepo: periodRepo,
		rollover:   rollover,
		aggregator: aggregator,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used to decide which period is current
func (s *PeriodService) SetClock(now func() time.Time) {
	s.now = now
}

// SetTemplateService enables applying expense templates to newly created periods
func (s *PeriodService) SetTemplateService(templates *TemplateService) {
	s.templates = templates
}

// GetOrCreateActive returns the owner's active period of a kind, closing an expired one
// and creating its successor when needed. Concurrent calls for the same owner and kind
// share one execution.
func (s *PeriodService) GetOrCreateActive(ctx context.Context, ownerID uuid.UUID, kind domain.PeriodKind) (*domain.Period, error) {
	if !kind.Valid() {
		return nil, domain.ErrInvalidPeriodKind
	}

	key := ownerID.String() + ":" + string(kind)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.getOrCreateActive(ctx, ownerID, kind)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Period), nil
}

func (s *PeriodService) getOrCreateActive(ctx context.Context, ownerID uuid.UUID, kind domain.PeriodKind) (*domain.Period, error) {
	now := s.now()

	active, err := s.periodRepo.GetActive(ctx, ownerID, kind)
	switch {
	case err == nil:
		if !active.IsExpired(now) {
			return s.resumeRollover(ctx, active)
		}
		log.Info().
			Str("owner_id", ownerID.String()).
			Str("period_id", active.ID.String()).
			Str("kind", string(kind)).
			Time("end_date", active.EndDate).
			Msg("Active period expired, closing")
		if _, err := s.closePeriod(ctx, active, nil); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrPeriodNotFound):
	default:
		return nil, fmt.Errorf("get active period: %w", err)
	}

	return s.createFromCalendar(ctx, ownerID, kind, now)
}

// createFromCalendar creates the period containing now and rolls the predecessor's fixed entries into it
func (s *PeriodService) createFromCalendar(ctx context.Context, ownerID uuid.UUID, kind domain.PeriodKind, now time.Time) (*domain.Period, error) {
	start, end, err := util.PeriodBounds(kind, now)
	if err != nil {
		return nil, err
	}

	predecessor, err := s.periodRepo.GetMostRecentlyClosed(ctx, ownerID, kind, nil)
	if err != nil && !errors.Is(err, domain.ErrPeriodNotFound) {
		return nil, fmt.Errorf("get predecessor period: %w", err)
	}
	if err != nil {
		predecessor = nil
	}

	period := &domain.Period{
		OwnerID:        ownerID,
		Kind:           kind,
		StartDate:      start,
		EndDate:        end,
		Salary:         decimal.Zero,
		TotalSpent:     decimal.Zero,
		State:          domain.PeriodStateActive,
		RolloverStatus: domain.RolloverStatusNone,
	}
	if predecessor != nil {
		if kind == domain.PeriodKindStandard {
			period.Salary = predecessor.Salary
		}
		period.Goals = predecessor.Goals
		sourceID := predecessor.ID
		period.RolloverSourceID = &sourceID
		period.RolloverStatus = domain.RolloverStatusPending
	}

	created, err := s.periodRepo.Create(ctx, period)
	if err != nil {
		if !errors.Is(err, domain.ErrActivePeriodExists) {
			return nil, fmt.Errorf("create period: %w", err)
		}
		// Another writer won the race; use its period
		winner, readErr := s.periodRepo.GetActive(ctx, ownerID, kind)
		if readErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
		return s.resumeRollover(ctx, winner)
	}

	log.Info().
		Str("owner_id", ownerID.String()).
		Str("period_id", created.ID.String()).
		Str("kind", string(kind)).
		Time("start_date", created.StartDate).
		Time("end_date", created.EndDate).
		Bool("has_predecessor", predecessor != nil).
		Msg("Period created")
	s.publisher.Publish(ownerID, websocket.PeriodCreated(created))

	if predecessor == nil {
		s.applyTemplates(ctx, created)
		settled, err := s.syncTotalSpent(ctx, created)
		if err != nil {
			log.Error().Err(err).
				Str("owner_id", ownerID.String()).
				Str("period_id", created.ID.String()).
				Msg("Failed to refresh total spent of new period")
			return created, nil
		}
		return settled, nil
	}
	return s.runRollover(ctx, predecessor, created)
}

// resumeRollover finishes a rollover that a previous call left pending
func (s *PeriodService) resumeRollover(ctx context.Context, period *domain.Period) (*domain.Period, error) {
	if period.RolloverStatus != domain.RolloverStatusPending {
		return period, nil
	}
	if period.RolloverSourceID == nil {
		// Source was deleted; nothing left to copy
		if err := s.periodRepo.SetRolloverStatus(ctx, period.OwnerID, period.ID, domain.RolloverStatusNone); err != nil {
			return nil, fmt.Errorf("reset rollover status: %w", err)
		}
		period.RolloverStatus = domain.RolloverStatusNone
		return period, nil
	}

	source, err := s.periodRepo.GetByID(ctx, period.OwnerID, *period.RolloverSourceID)
	if err != nil {
		return nil, fmt.Errorf("load rollover source: %w", err)
	}
	log.Info().
		Str("owner_id", period.OwnerID.String()).
		Str("period_id", period.ID.String()).
		Str("source_id", source.ID.String()).
		Msg("Resuming pending rollover")
	return s.runRollover(ctx, source, period)
}

// runRollover copies the source's fixed entries, applies templates and refreshes the credit
// total before marking the rollover completed, so a failure leaves it pending for the next call
func (s *PeriodService) runRollover(ctx context.Context, source, destination *domain.Period) (*domain.Period, error) {
	result, err := s.rollover.Rollover(ctx, source, destination)
	if err != nil {
		return nil, err
	}
	s.applyTemplates(ctx, destination)
	settled, err := s.syncTotalSpent(ctx, destination)
	if err != nil {
		return nil, err
	}
	if err := s.periodRepo.SetRolloverStatus(ctx, settled.OwnerID, settled.ID, domain.RolloverStatusCompleted); err != nil {
		return nil, fmt.Errorf("mark rollover completed: %w", err)
	}
	settled.RolloverStatus = domain.RolloverStatusCompleted
	s.publisher.Publish(settled.OwnerID, websocket.PeriodRolledOver(settled.ID, result))
	return settled, nil
}

// applyTemplates materializes active templates into period. Failures are logged; RepairActive retries them.
func (s *PeriodService) applyTemplates(ctx context.Context, period *domain.Period) *MaterializeResult {
	if s.templates == nil {
		return nil
	}
	result, err := s.templates.Materialize(ctx, period)
	if err != nil {
		log.Error().Err(err).
			Str("owner_id", period.OwnerID.String()).
			Str("period_id", period.ID.String()).
			Msg("Failed to apply expense templates")
		return nil
	}
	return result
}

func (s *PeriodService) syncTotalSpent(ctx context.Context, period *domain.Period) (*domain.Period, error) {
	if s.aggregator == nil {
		return period, nil
	}
	return syncTotalSpent(ctx, s.periodRepo, s.aggregator, s.publisher, period)
}

// CreatePeriod creates a period with explicit settings. It never rolls entries over.
func (s *PeriodService) CreatePeriod(ctx context.Context, ownerID uuid.UUID, input CreatePeriodInput) (*domain.Period, error) {
	if !input.Kind.Valid() {
		return nil, domain.ErrInvalidPeriodKind
	}
	if input.State == "" {
		input.State = domain.PeriodStateActive
	}
	if !input.State.Valid() {
		return nil, domain.ErrInvalidPeriodState
	}
	if input.Salary.IsNegative() {
		return nil, domain.ErrNegativeAmount
	}
	if err := input.Goals.Validate(); err != nil {
		return nil, err
	}
	if input.Kind == domain.PeriodKindStandard && input.Goals.Total().GreaterThan(input.Salary) {
		return nil, domain.ErrGoalsExceedSalary
	}
	if input.Kind == domain.PeriodKindCreditCycle && !input.Salary.IsZero() {
		return nil, fmt.Errorf("%w: salary applies to standard periods only", domain.ErrInvalidInput)
	}

	start, end, err := s.resolveBounds(input)
	if err != nil {
		return nil, err
	}

	created, err := s.periodRepo.Create(ctx, &domain.Period{
		OwnerID:        ownerID,
		Kind:           input.Kind,
		StartDate:      start,
		EndDate:        end,
		Salary:         input.Salary,
		Goals:          input.Goals,
		State:          input.State,
		TotalSpent:     decimal.Zero,
		RolloverStatus: domain.RolloverStatusNone,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("owner_id", ownerID.String()).
		Str("period_id", created.ID.String()).
		Str("kind", string(created.Kind)).
		Str("state", string(created.State)).
		Msg("Period created manually")
	s.publisher.Publish(ownerID, websocket.PeriodCreated(created))
	return created, nil
}

func (s *PeriodService) resolveBounds(input CreatePeriodInput) (time.Time, time.Time, error) {
	switch {
	case input.StartDate != nil && input.EndDate != nil:
		if input.EndDate.Before(*input.StartDate) {
			return time.Time{}, time.Time{}, domain.ErrInvalidPeriodRange
		}
		return *input.StartDate, *input.EndDate, nil
	case input.StartDate != nil || input.EndDate != nil:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start and end dates must be given together", domain.ErrInvalidInput)
	case input.Reference != nil:
		return util.PeriodBounds(input.Kind, *input.Reference)
	default:
		return util.PeriodBounds(input.Kind, s.now())
	}
}

// GetPeriod retrieves one of the owner's periods
func (s *PeriodService) GetPeriod(ctx context.Context, ownerID, id uuid.UUID) (*domain.Period, error) {
	return s.periodRepo.GetByID(ctx, ownerID, id)
}

// ListPeriods lists the owner's periods, newest first
func (s *PeriodService) ListPeriods(ctx context.Context, ownerID uuid.UUID, filter domain.PeriodFilter) ([]*domain.Period, error) {
	if filter.Kind != nil && !filter.Kind.Valid() {
		return nil, domain.ErrInvalidPeriodKind
	}
	if filter.State != nil && !filter.State.Valid() {
		return nil, domain.ErrInvalidPeriodState
	}
	return s.periodRepo.List(ctx, ownerID, filter)
}

// ClosePeriod closes a period, optionally overriding its end date.
// Closing an already closed period returns it unchanged.
func (s *PeriodService) ClosePeriod(ctx context.Context, ownerID, id uuid.UUID, endDate *time.Time) (*domain.Period, error) {
	period, err := s.periodRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if period.IsClosed() {
		return period, nil
	}
	if endDate != nil && endDate.Before(period.StartDate) {
		return nil, domain.ErrInvalidPeriodRange
	}
	return s.closePeriod(ctx, period, endDate)
}

func (s *PeriodService) closePeriod(ctx context.Context, period *domain.Period, endDate *time.Time) (*domain.Period, error) {
	// Entries still missing from a pending rollover would never reach the successor
	if period.RolloverStatus == domain.RolloverStatusPending {
		resumed, err := s.resumeRollover(ctx, period)
		if err != nil {
			return nil, err
		}
		period = resumed
	}

	closed, err := s.periodRepo.Close(ctx, period.OwnerID, period.ID, endDate)
	if err != nil {
		if !errors.Is(err, domain.ErrPeriodNotFound) {
			return nil, fmt.Errorf("close period: %w", err)
		}
		// A concurrent caller may have closed it first
		current, getErr := s.periodRepo.GetByID(ctx, period.OwnerID, period.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.IsClosed() {
			return current, nil
		}
		return nil, fmt.Errorf("close period: %w", err)
	}

	log.Info().
		Str("owner_id", closed.OwnerID.String()).
		Str("period_id", closed.ID.String()).
		Str("kind", string(closed.Kind)).
		Time("end_date", closed.EndDate).
		Msg("Period closed")
	s.publisher.Publish(closed.OwnerID, websocket.PeriodClosed(closed))
	return closed, nil
}

// UpdatePeriod applies a partial update. A target state of closed routes through ClosePeriod.
func (s *PeriodService) UpdatePeriod(ctx context.Context, ownerID, id uuid.UUID, patch domain.PeriodPatch) (*domain.Period, error) {
	if err := validatePeriodPatch(patch); err != nil {
		return nil, err
	}

	period, err := s.periodRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return period, nil
	}
	if period.IsClosed() {
		return nil, domain.ErrPeriodClosed
	}

	closeAfter := false
	if patch.State != nil {
		target := *patch.State
		switch {
		case target == period.State:
			patch.State = nil
		case target == domain.PeriodStateClosed:
			closeAfter = true
			patch.State = nil
		case period.State == domain.PeriodStateProjected && target == domain.PeriodStateActive:
		default:
			return nil, domain.ErrInvalidTransition
		}
	}

	switch period.Kind {
	case domain.PeriodKindStandard:
		if patch.TotalSpent != nil {
			return nil, fmt.Errorf("%w: total spent applies to credit cycles only", domain.ErrInvalidInput)
		}
		if patch.Salary != nil || patch.Goals != nil {
			salary, goals := period.Salary, period.Goals
			if patch.Salary != nil {
				salary = *patch.Salary
			}
			if patch.Goals != nil {
				goals = *patch.Goals
			}
			if goals.Total().GreaterThan(salary) {
				return nil, domain.ErrGoalsExceedSalary
			}
		}
	case domain.PeriodKindCreditCycle:
		if patch.Salary != nil {
			return nil, fmt.Errorf("%w: salary applies to standard periods only", domain.ErrInvalidInput)
		}
		if patch.TotalSpent != nil {
			bootstrapped, err := s.bootstrapOpeningDebt(ctx, period, *patch.TotalSpent)
			if err != nil {
				return nil, err
			}
			if bootstrapped {
				zero := decimal.Zero
				patch.TotalSpent = &zero
			}
		}
	}

	updated := period
	if !patch.IsEmpty() {
		updated, err = s.periodRepo.Update(ctx, ownerID, id, patch)
		if err != nil {
			if errors.Is(err, domain.ErrActivePeriodExists) {
				return nil, fmt.Errorf("%w: %w", domain.ErrConflict, err)
			}
			return nil, err
		}
		log.Info().
			Str("owner_id", ownerID.String()).
			Str("period_id", id.String()).
			Msg("Period updated")
		s.publisher.Publish(ownerID, websocket.PeriodUpdated(updated))
	}

	if closeAfter {
		return s.closePeriod(ctx, updated, nil)
	}
	return updated, nil
}

func validatePeriodPatch(patch domain.PeriodPatch) error {
	if patch.Salary != nil && patch.Salary.IsNegative() {
		return domain.ErrNegativeAmount
	}
	if patch.TotalSpent != nil && patch.TotalSpent.IsNegative() {
		return domain.ErrNegativeAmount
	}
	if patch.Goals != nil {
		if err := patch.Goals.Validate(); err != nil {
			return err
		}
	}
	if patch.State != nil && !patch.State.Valid() {
		return domain.ErrInvalidPeriodState
	}
	return nil
}

// bootstrapOpeningDebt records debt carried in from before the owner started tracking.
// With no closed cycle before this one, a closed predecessor holding the amount is synthesized.
func (s *PeriodService) bootstrapOpeningDebt(ctx context.Context, period *domain.Period, totalSpent decimal.Decimal) (bool, error) {
	before := period.StartDate
	_, err := s.periodRepo.GetMostRecentlyClosed(ctx, period.OwnerID, domain.PeriodKindCreditCycle, &before)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrPeriodNotFound) {
		return false, fmt.Errorf("get previous credit cycle: %w", err)
	}

	start, end, err := util.CreditCycleBounds(util.PreviousCycleReference(period.StartDate))
	if err != nil {
		return false, err
	}
	synthesized, err := s.periodRepo.Create(ctx, &domain.Period{
		OwnerID:        period.OwnerID,
		Kind:           domain.PeriodKindCreditCycle,
		StartDate:      start,
		EndDate:        end,
		Salary:         decimal.Zero,
		TotalSpent:     totalSpent,
		State:          domain.PeriodStateClosed,
		RolloverStatus: domain.RolloverStatusNone,
	})
	if err != nil {
		return false, fmt.Errorf("create opening debt period: %w", err)
	}

	log.Info().
		Str("owner_id", period.OwnerID.String()).
		Str("period_id", synthesized.ID.String()).
		Str("total_spent", totalSpent.StringFixed(2)).
		Msg("Opening debt period synthesized")
	s.publisher.Publish(period.OwnerID, websocket.PeriodCreated(synthesized))
	return true, nil
}

// DeletePeriod removes a period and its entries
func (s *PeriodService) DeletePeriod(ctx context.Context, ownerID, id uuid.UUID) error {
	period, err := s.periodRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.periodRepo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	log.Warn().
		Str("owner_id", ownerID.String()).
		Str("period_id", id.String()).
		Str("kind", string(period.Kind)).
		Msg("Period deleted")
	s.publisher.Publish(ownerID, websocket.PeriodDeleted(period))
	return nil
}

// RepairActive realigns the active period with the calendar, restores a missing salary and
// goals from the predecessor, and copies any fixed entries the predecessor still lacks.
func (s *PeriodService) RepairActive(ctx context.Context, ownerID uuid.UUID, kind domain.PeriodKind) (*RepairReport, error) {
	if !kind.Valid() {
		return nil, domain.ErrInvalidPeriodKind
	}
	period, err := s.periodRepo.GetActive(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}
	report := &RepairReport{}

	start, end, err := util.PeriodBounds(kind, s.now())
	if err != nil {
		return nil, err
	}
	if !period.StartDate.Equal(start) || !period.EndDate.Equal(end) {
		period, err = s.periodRepo.UpdateBounds(ctx, ownerID, period.ID, start, end)
		if err != nil {
			return nil, fmt.Errorf("update bounds: %w", err)
		}
		report.BoundsFixed = true
	}

	predecessor, err := s.periodRepo.GetMostRecentlyClosed(ctx, ownerID, kind, &period.StartDate)
	if err != nil && !errors.Is(err, domain.ErrPeriodNotFound) {
		return nil, fmt.Errorf("get predecessor period: %w", err)
	}

	if err == nil {
		predecessorID := predecessor.ID
		report.PredecessorID = &predecessorID

		var patch domain.PeriodPatch
		if kind == domain.PeriodKindStandard && period.Salary.IsZero() && predecessor.Salary.IsPositive() {
			patch.Salary = &predecessor.Salary
			report.SalaryRecovered = true
		}
		if period.Goals.Total().IsZero() && predecessor.Goals.Total().IsPositive() {
			patch.Goals = &predecessor.Goals
			report.GoalsRecovered = true
		}
		if !patch.IsEmpty() {
			period, err = s.periodRepo.Update(ctx, ownerID, period.ID, patch)
			if err != nil {
				return nil, fmt.Errorf("recover salary and goals: %w", err)
			}
		}

		result, err := s.rollover.Rollover(ctx, predecessor, period)
		if err != nil {
			return nil, err
		}
		report.Rollover = result
	}

	report.Templates = s.applyTemplates(ctx, period)
	period, err = s.syncTotalSpent(ctx, period)
	if err != nil {
		return nil, err
	}
	if report.Rollover != nil && period.RolloverStatus != domain.RolloverStatusCompleted {
		if err := s.periodRepo.SetRolloverStatus(ctx, ownerID, period.ID, domain.RolloverStatusCompleted); err != nil {
			return nil, fmt.Errorf("mark rollover completed: %w", err)
		}
		period.RolloverStatus = domain.RolloverStatusCompleted
	}

	report.Period = period
	log.Info().
		Str("owner_id", ownerID.String()).
		Str("period_id", period.ID.String()).
		Str("kind", string(kind)).
		Bool("bounds_fixed", report.BoundsFixed).
		Bool("salary_recovered", report.SalaryRecovered).
		Bool("goals_recovered", report.GoalsRecovered).
		Msg("Active period repaired")
	s.publisher.Publish(ownerID, websocket.PeriodUpdated(period))
	return report, nil
}

// ApplyTemplates materializes the owner's active templates into an open period on demand
func (s *PeriodService) ApplyTemplates(ctx context.Context, ownerID, id uuid.UUID) (*MaterializeResult, error) {
	if s.templates == nil {
		return nil, fmt.Errorf("%w: expense templates are not enabled", domain.ErrInvalidState)
	}
	period, err := s.periodRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	result, err := s.templates.Materialize(ctx, period)
	if err != nil {
		return nil, err
	}
	if len(result.Created) > 0 {
		if _, err := s.syncTotalSpent(ctx, period); err != nil {
			return nil, err
		}
	}
	return result, nil
}
