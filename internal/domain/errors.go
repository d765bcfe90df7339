package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidState  = errors.New("invalid state")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternalError = errors.New("internal error")
)

// Validation errors
var (
	ErrNameRequired   = fmt.Errorf("%w: name is required", ErrInvalidInput)
	ErrNameTooLong    = fmt.Errorf("%w: name exceeds maximum length", ErrInvalidInput)
	ErrNotesTooLong   = fmt.Errorf("%w: notes exceed maximum length", ErrInvalidInput)
	ErrInvalidAmount  = fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	ErrNegativeAmount = fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
)

// Period errors
var (
	ErrPeriodNotFound     = fmt.Errorf("period %w", ErrNotFound)
	ErrPeriodClosed       = fmt.Errorf("%w: period is closed", ErrInvalidState)
	ErrActivePeriodExists = fmt.Errorf("active period %w", ErrAlreadyExists)
	ErrInvalidPeriodKind  = fmt.Errorf("%w: unknown period kind", ErrInvalidInput)
	ErrInvalidPeriodState = fmt.Errorf("%w: unknown period state", ErrInvalidInput)
	ErrInvalidPeriodRange = fmt.Errorf("%w: period end precedes start", ErrInvalidInput)
	ErrInvalidReference   = fmt.Errorf("%w: invalid reference date", ErrInvalidInput)
	ErrGoalsExceedSalary  = fmt.Errorf("%w: category goals exceed salary", ErrInvalidInput)
	ErrInvalidTransition  = fmt.Errorf("%w: state transition not allowed", ErrInvalidState)
)

// Rollover errors
var (
	ErrRolloverIncomplete = errors.New("rollover incomplete")
	ErrRolloverMismatch   = fmt.Errorf("%w: rollover periods differ in owner or kind", ErrInvalidInput)
	ErrRolloverSourceOpen = fmt.Errorf("%w: rollover source period is not closed", ErrInvalidState)
	ErrEntryAlreadyRolled = fmt.Errorf("rolled entry %w", ErrAlreadyExists)
)

// Ledger errors
var (
	ErrCategoryNotFound     = fmt.Errorf("category %w", ErrNotFound)
	ErrExpenseNotFound      = fmt.Errorf("expense %w", ErrNotFound)
	ErrContributionNotFound = fmt.Errorf("contribution %w", ErrNotFound)
	ErrInvalidSchedule      = fmt.Errorf("%w: invalid expense schedule", ErrInvalidInput)
)

// Template errors
var (
	ErrTemplateNotFound       = fmt.Errorf("template %w", ErrNotFound)
	ErrInvalidChargeDay       = fmt.Errorf("%w: charge day must be between 1 and 31", ErrInvalidInput)
	ErrInvalidPaymentMethod   = fmt.Errorf("%w: unknown payment method", ErrInvalidInput)
	ErrTemplateAlreadyApplied = fmt.Errorf("template expense %w", ErrAlreadyExists)
)

// Validation constants
const (
	MaxEntryNameLength  = 200
	MaxEntryNotesLength = 500
)
