package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutoffEndDate(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		day   int
		want  time.Time
	}{
		{"mid month", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), 15, time.Date(2025, time.March, 15, 23, 59, 59, 999999999, time.UTC)},
		{"clamped to february", time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), 31, time.Date(2025, time.February, 28, 23, 59, 59, 999999999, time.UTC)},
		{"leap february", time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), 30, time.Date(2024, time.February, 29, 23, 59, 59, 999999999, time.UTC)},
		{"credit cycle start month", time.Date(2025, time.January, 25, 0, 0, 0, 0, time.UTC), 28, time.Date(2025, time.January, 28, 23, 59, 59, 999999999, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cutoffEndDate(&domain.Period{StartDate: tt.start}, tt.day)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestTarget(t *testing.T) {
	defer func(owner, kind string) { ownerFlag, kindFlag = owner, kind }(ownerFlag, kindFlag)

	owner := uuid.New()
	ownerFlag, kindFlag = owner.String(), "credit_cycle"
	gotOwner, gotKind, err := target()
	require.NoError(t, err)
	assert.Equal(t, owner, gotOwner)
	assert.Equal(t, domain.PeriodKindCreditCycle, gotKind)

	ownerFlag = ""
	_, _, err = target()
	assert.Error(t, err)

	ownerFlag, kindFlag = owner.String(), "weekly"
	_, _, err = target()
	assert.Error(t, err)

	ownerFlag, kindFlag = uuid.Nil.String(), "standard"
	_, _, err = target()
	assert.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	goal := decimal.NewFromInt(200)
	summary := &domain.LiquiditySummary{
		Period: &domain.Period{
			ID:        uuid.New(),
			Kind:      domain.PeriodKindStandard,
			State:     domain.PeriodStateActive,
			StartDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC),
			Salary:    decimal.NewFromInt(3000),
		},
		Categories: []domain.CategorySummary{
			{Name: "Usable Credit", Expenses: decimal.NewFromInt(50), Contributions: decimal.Zero, RealTotal: decimal.NewFromInt(50), Goal: &goal},
			{Name: "Liquidity", Expenses: decimal.NewFromInt(20), Contributions: decimal.Zero, RealTotal: decimal.NewFromInt(20)},
		},
		Debt:          decimal.NewFromInt(100),
		BaseLiquidity: decimal.NewFromInt(2900),
		Liquidity:     decimal.NewFromInt(2880),
	}

	var buf bytes.Buffer
	printSummary(&buf, summary)
	out := buf.String()

	assert.Contains(t, out, "2025-01-01")
	assert.Contains(t, out, "200.00")
	assert.Contains(t, out, "debt: 100.00")
	assert.Contains(t, out, "liquidity: 2880.00")
}
