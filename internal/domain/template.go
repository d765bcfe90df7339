package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod records how a templated charge is paid
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentDebit    PaymentMethod = "debit"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCredit   PaymentMethod = "credit"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentDebit, PaymentTransfer, PaymentCredit:
		return true
	}
	return false
}

// PeriodKind returns the kind of period the charge lands in: card charges go to the credit cycle
func (m PaymentMethod) PeriodKind() PeriodKind {
	if m == PaymentCredit {
		return PeriodKindCreditCycle
	}
	return PeriodKindStandard
}

// ChargeDay bounds
const (
	MinChargeDay = 1
	MaxChargeDay = 31
)

// ExpenseTemplate is a standing monthly charge. Active templates become one expense in every
// new period of the matching kind; editing a template never touches expenses already created.
type ExpenseTemplate struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"ownerId"`
	CategoryID    uuid.UUID       `json:"categoryId"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	ChargeDay     int             `json:"chargeDay"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Active        bool            `json:"active"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// TemplatePatch updates a template; nil fields are left untouched
type TemplatePatch struct {
	Name          *string
	Amount        *decimal.Decimal
	ChargeDay     *int
	PaymentMethod *PaymentMethod
	Active        *bool
	Notes         *string
}

// IsEmpty returns true if the patch changes nothing
func (p TemplatePatch) IsEmpty() bool {
	return p.Name == nil && p.Amount == nil && p.ChargeDay == nil &&
		p.PaymentMethod == nil && p.Active == nil && p.Notes == nil
}

// Validate checks the patched fields only
func (p TemplatePatch) Validate() error {
	if err := (EntryPatch{Name: p.Name, Amount: p.Amount, Notes: p.Notes}).Validate(); err != nil {
		return err
	}
	if p.ChargeDay != nil {
		if err := ValidateChargeDay(*p.ChargeDay); err != nil {
			return err
		}
	}
	if p.PaymentMethod != nil && !p.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	return nil
}

// ValidateChargeDay checks a day lies in 1..31
func ValidateChargeDay(day int) error {
	if day < MinChargeDay || day > MaxChargeDay {
		return ErrInvalidChargeDay
	}
	return nil
}

type TemplateFilter struct {
	Active *bool
	Kind   *PeriodKind
}

type TemplateRepository interface {
	Create(ctx context.Context, template *ExpenseTemplate) (*ExpenseTemplate, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*ExpenseTemplate, error)
	// List returns the owner's templates ordered by name
	List(ctx context.Context, ownerID uuid.UUID, filter TemplateFilter) ([]*ExpenseTemplate, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, patch TemplatePatch) (*ExpenseTemplate, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}
