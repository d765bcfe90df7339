package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodKind distinguishes calendar-month budgets from card billing cycles
type PeriodKind string

const (
	PeriodKindStandard    PeriodKind = "standard"
	PeriodKindCreditCycle PeriodKind = "credit_cycle"
)

// Valid reports whether k is a known period kind
func (k PeriodKind) Valid() bool {
	return k == PeriodKindStandard || k == PeriodKindCreditCycle
}

type PeriodState string

const (
	PeriodStateActive    PeriodState = "active"
	PeriodStateClosed    PeriodState = "closed"
	PeriodStateProjected PeriodState = "projected"
)

// Valid reports whether s is a known period state
func (s PeriodState) Valid() bool {
	switch s {
	case PeriodStateActive, PeriodStateClosed, PeriodStateProjected:
		return true
	}
	return false
}

// RolloverStatus tracks whether recurring entries were copied in from the predecessor
type RolloverStatus string

const (
	RolloverStatusNone      RolloverStatus = "none"
	RolloverStatusPending   RolloverStatus = "pending"
	RolloverStatusCompleted RolloverStatus = "completed"
)

// CategoryGoals holds per-category budget targets
type CategoryGoals struct {
	Savings      decimal.Decimal `json:"savings"`
	Rent         decimal.Decimal `json:"rent"`
	CreditUsable decimal.Decimal `json:"creditUsable"`
}

// Total returns the sum of all goals
func (g CategoryGoals) Total() decimal.Decimal {
	return g.Savings.Add(g.Rent).Add(g.CreditUsable)
}

// Validate rejects negative goals
func (g CategoryGoals) Validate() error {
	if g.Savings.IsNegative() || g.Rent.IsNegative() || g.CreditUsable.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

type Period struct {
	ID               uuid.UUID       `json:"id"`
	OwnerID          uuid.UUID       `json:"ownerId"`
	Kind             PeriodKind      `json:"kind"`
	StartDate        time.Time       `json:"startDate"`
	EndDate          time.Time       `json:"endDate"`
	Salary           decimal.Decimal `json:"salary"`
	Goals            CategoryGoals   `json:"goals"`
	State            PeriodState     `json:"state"`
	TotalSpent       decimal.Decimal `json:"totalSpent"`
	RolloverSourceID *uuid.UUID      `json:"rolloverSourceId,omitempty"`
	RolloverStatus   RolloverStatus  `json:"rolloverStatus"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// IsExpired returns true once now is past the period's end
func (p *Period) IsExpired(now time.Time) bool {
	return now.After(p.EndDate)
}

// IsClosed returns true if the period reached its terminal state
func (p *Period) IsClosed() bool {
	return p.State == PeriodStateClosed
}

// PeriodPatch carries field-level updates; nil fields are left untouched
type PeriodPatch struct {
	Salary     *decimal.Decimal
	Goals      *CategoryGoals
	State      *PeriodState
	TotalSpent *decimal.Decimal
}

// IsEmpty returns true if the patch changes nothing
func (p PeriodPatch) IsEmpty() bool {
	return p.Salary == nil && p.Goals == nil && p.State == nil && p.TotalSpent == nil
}

type PeriodFilter struct {
	Kind  *PeriodKind
	State *PeriodState
}

type PeriodRepository interface {
	// Create inserts a period. Returns ErrActivePeriodExists if the owner already has an active period of that kind.
	Create(ctx context.Context, period *Period) (*Period, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Period, error)
	GetActive(ctx context.Context, ownerID uuid.UUID, kind PeriodKind) (*Period, error)
	// GetMostRecentlyClosed returns the closed period with the latest end date, optionally restricted to end strictly before the given instant.
	GetMostRecentlyClosed(ctx context.Context, ownerID uuid.UUID, kind PeriodKind, before *time.Time) (*Period, error)
	List(ctx context.Context, ownerID uuid.UUID, filter PeriodFilter) ([]*Period, error)
	// ListExpiredActive returns active periods of any owner that ended before now, oldest first
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*Period, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, patch PeriodPatch) (*Period, error)
	// Close sets the state to closed (and the end date when given) only if the period is not closed yet.
	Close(ctx context.Context, ownerID, id uuid.UUID, endDate *time.Time) (*Period, error)
	UpdateBounds(ctx context.Context, ownerID, id uuid.UUID, startDate, endDate time.Time) (*Period, error)
	SetRolloverStatus(ctx context.Context, ownerID, id uuid.UUID, status RolloverStatus) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}
