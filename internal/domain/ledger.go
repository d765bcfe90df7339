package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Recurrence string

const (
	RecurrenceFixed    Recurrence = "fixed"
	RecurrenceVariable Recurrence = "variable"
)

// Schedule describes how an expense recurs. It is one of Variable, Permanent or Temporal.
type Schedule interface {
	Recurrence() Recurrence
	sealed()
}

// Variable is a one-off expense that never rolls over
type Variable struct{}

// Permanent is a fixed expense copied into every following period
type Permanent struct{}

// Temporal is a fixed expense with a bounded number of periods still to run
type Temporal struct {
	RemainingCycles int
}

func (Variable) Recurrence() Recurrence  { return RecurrenceVariable }
func (Permanent) Recurrence() Recurrence { return RecurrenceFixed }
func (Temporal) Recurrence() Recurrence  { return RecurrenceFixed }

func (Variable) sealed()  {}
func (Permanent) sealed() {}
func (Temporal) sealed()  {}

// ValidateSchedule rejects a missing schedule or a negative counter
func ValidateSchedule(s Schedule) error {
	switch v := s.(type) {
	case Variable, Permanent:
		return nil
	case Temporal:
		if v.RemainingCycles < 0 {
			return ErrInvalidSchedule
		}
		return nil
	default:
		return ErrInvalidSchedule
	}
}

type Expense struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"ownerId"`
	PeriodID      uuid.UUID       `json:"periodId"`
	CategoryID    uuid.UUID       `json:"categoryId"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	Schedule      Schedule        `json:"-"`
	Notes         *string         `json:"notes,omitempty"`
	SourceEntryID *uuid.UUID      `json:"sourceEntryId,omitempty"`
	TemplateID    *uuid.UUID      `json:"templateId,omitempty"` // set when generated from an ExpenseTemplate
	RecordedAt    time.Time       `json:"recordedAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Recurrence returns fixed or variable based on the schedule
func (e *Expense) Recurrence() Recurrence {
	if e.Schedule == nil {
		return RecurrenceVariable
	}
	return e.Schedule.Recurrence()
}

type Contribution struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"ownerId"`
	PeriodID      uuid.UUID       `json:"periodId"`
	CategoryID    uuid.UUID       `json:"categoryId"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	IsFixed       bool            `json:"isFixed"`
	Notes         *string         `json:"notes,omitempty"`
	SourceEntryID *uuid.UUID      `json:"sourceEntryId,omitempty"`
	RecordedAt    time.Time       `json:"recordedAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// EntryPatch updates the mutable fields of an expense or contribution
type EntryPatch struct {
	Name   *string
	Amount *decimal.Decimal
	Notes  *string
}

// IsEmpty returns true if the patch changes nothing
func (p EntryPatch) IsEmpty() bool {
	return p.Name == nil && p.Amount == nil && p.Notes == nil
}

// Validate checks the patched fields only
func (p EntryPatch) Validate() error {
	if p.Name != nil {
		if err := ValidateEntryName(*p.Name); err != nil {
			return err
		}
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Notes != nil && len(*p.Notes) > MaxEntryNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

// ValidateEntryName trims and checks an entry name
func ValidateEntryName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if len(name) > MaxEntryNameLength {
		return ErrNameTooLong
	}
	return nil
}

type ExpenseFilter struct {
	Recurrence *Recurrence
	CategoryID *uuid.UUID
}

type ContributionFilter struct {
	IsFixed    *bool
	CategoryID *uuid.UUID
}

type ExpenseRepository interface {
	// Create inserts an expense. Returns ErrEntryAlreadyRolled if the period already holds a copy of SourceEntryID,
	// and ErrTemplateAlreadyApplied if it already holds the expense generated from TemplateID.
	Create(ctx context.Context, expense *Expense) (*Expense, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Expense, error)
	ListByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, filter ExpenseFilter) ([]*Expense, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, patch EntryPatch) (*Expense, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	// SumByPeriod sums expense amounts in a period, optionally restricted to one category
	SumByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, categoryID *uuid.UUID) (decimal.Decimal, error)
}

type ContributionRepository interface {
	Create(ctx context.Context, contribution *Contribution) (*Contribution, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Contribution, error)
	ListByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, filter ContributionFilter) ([]*Contribution, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, patch EntryPatch) (*Contribution, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	SumByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, categoryID *uuid.UUID) (decimal.Decimal, error)
}
