package util

import (
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
)

// CreditCycleBoundaryDay is the day of month a credit cycle starts on
const CreditCycleBoundaryDay = 25

// PreviousMonth returns the year and month for the previous month
func PreviousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// NextMonth returns the year and month for the following month
func NextMonth(year, month int) (int, int) {
	if month == 12 {
		return year + 1, 1
	}
	return year, month + 1
}

// DaysInMonth returns the number of days in the given month
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// CalculateActualDate returns the actual date for a target day in a given month,
// handling months with fewer days (e.g., day 31 in February returns Feb 28/29)
func CalculateActualDate(year int, month time.Month, targetDay int, loc *time.Location) time.Time {
	actualDay := targetDay
	if lastDay := DaysInMonth(year, month); actualDay > lastDay {
		actualDay = lastDay
	}
	if actualDay < 1 {
		actualDay = 1
	}
	return time.Date(year, month, actualDay, 0, 0, 0, 0, loc)
}

// StartOfDay truncates t to midnight in its own location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's day
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// StandardBounds returns the first and last instant of the month containing ref
func StandardBounds(ref time.Time) (time.Time, time.Time, error) {
	if ref.IsZero() {
		return time.Time{}, time.Time{}, domain.ErrInvalidReference
	}
	loc := ref.Location()
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
	last := time.Date(ref.Year(), ref.Month(), DaysInMonth(ref.Year(), ref.Month()), 0, 0, 0, 0, loc)
	return start, EndOfDay(last), nil
}

// CreditCycleBounds returns the 25th-to-24th billing window containing ref
func CreditCycleBounds(ref time.Time) (time.Time, time.Time, error) {
	if ref.IsZero() {
		return time.Time{}, time.Time{}, domain.ErrInvalidReference
	}
	loc := ref.Location()
	year, month := ref.Year(), int(ref.Month())

	var startYear, startMonth, endYear, endMonth int
	if ref.Day() >= CreditCycleBoundaryDay {
		startYear, startMonth = year, month
		endYear, endMonth = NextMonth(year, month)
	} else {
		startYear, startMonth = PreviousMonth(year, month)
		endYear, endMonth = year, month
	}

	start := time.Date(startYear, time.Month(startMonth), CreditCycleBoundaryDay, 0, 0, 0, 0, loc)
	end := EndOfDay(time.Date(endYear, time.Month(endMonth), CreditCycleBoundaryDay-1, 0, 0, 0, 0, loc))
	return start, end, nil
}

// PeriodBounds returns the bounds of the period of the given kind containing ref
func PeriodBounds(kind domain.PeriodKind, ref time.Time) (time.Time, time.Time, error) {
	switch kind {
	case domain.PeriodKindStandard:
		return StandardBounds(ref)
	case domain.PeriodKindCreditCycle:
		return CreditCycleBounds(ref)
	default:
		return time.Time{}, time.Time{}, domain.ErrInvalidPeriodKind
	}
}

// PreviousCycleReference returns an instant inside the period that ends right before start
func PreviousCycleReference(start time.Time) time.Time {
	return StartOfDay(start).AddDate(0, 0, -1)
}

// ChargeDate returns the first date on or after start that falls on day (clamped to the month
// length), capped at the day end falls on
func ChargeDate(start, end time.Time, day int) time.Time {
	first := StartOfDay(start)
	charge := CalculateActualDate(first.Year(), first.Month(), day, first.Location())
	if charge.Before(first) {
		year, month := NextMonth(first.Year(), int(first.Month()))
		charge = CalculateActualDate(year, time.Month(month), day, first.Location())
	}
	if last := StartOfDay(end); charge.After(last) {
		return last
	}
	return charge
}
