package handler

import (
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (read as UTC midnight)
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, value)
}

func parseOptionalDate(value *string) (*time.Time, bool) {
	if value == nil || *value == "" {
		return nil, true
	}
	t, err := parseDate(*value)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// parseAmount parses a decimal string; an empty string is zero
func parseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

func decimalRequired(value string) (decimal.Decimal, error) {
	return decimal.NewFromString(value)
}

func parseOptionalAmount(value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

// Schedule names used on the wire
const (
	scheduleVariable  = "variable"
	schedulePermanent = "permanent"
	scheduleTemporal  = "temporal"
)

func parseSchedule(name string, remainingCycles *int) (domain.Schedule, bool) {
	switch name {
	case "", scheduleVariable:
		return domain.Variable{}, true
	case schedulePermanent:
		return domain.Permanent{}, true
	case scheduleTemporal:
		if remainingCycles == nil {
			return nil, false
		}
		return domain.Temporal{RemainingCycles: *remainingCycles}, true
	default:
		return nil, false
	}
}

func scheduleName(s domain.Schedule) (string, *int) {
	switch v := s.(type) {
	case domain.Permanent:
		return schedulePermanent, nil
	case domain.Temporal:
		remaining := v.RemainingCycles
		return scheduleTemporal, &remaining
	default:
		return scheduleVariable, nil
	}
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
