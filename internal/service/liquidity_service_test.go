package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) setTotalSpent(t *testing.T, p *domain.Period, amount int64) {
	t.Helper()
	v := dec(amount)
	_, err := f.periods.Update(context.Background(), f.owner, p.ID, domain.PeriodPatch{TotalSpent: &v})
	require.NoError(t, err)
}

func rowBySlug(summary *domain.LiquiditySummary, slug domain.CategorySlug) domain.CategorySummary {
	for _, row := range summary.Categories {
		if row.Slug == slug {
			return row
		}
	}
	return domain.CategorySummary{}
}

func TestLiquidityService_ComputeLiquidity(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))

	january := f.addPeriod(t, domain.PeriodKindStandard, date(2025, time.January, 10), domain.PeriodStateClosed)
	f.withBudget(t, january, 1000000, budgetGoals())
	f.addExpense(january.ID, f.fixed.Rent, "Rent", 450000, domain.Permanent{})
	f.addExpense(january.ID, f.fixed.Savings, "Emergency fund", 250000, domain.Permanent{})
	f.addExpense(january.ID, f.fixed.Liquidity, "Groceries", 30000, domain.Variable{})
	f.addContribution(january.ID, f.fixed.Liquidity, "Refund", 10000, false)

	// The bill due in January comes from the cycle that ended on Dec 24, not the one ending Jan 24
	dueInJanuary := f.addPeriod(t, domain.PeriodKindCreditCycle, date(2024, time.December, 10), domain.PeriodStateClosed)
	f.setTotalSpent(t, dueInJanuary, 120000)
	dueInFebruary := f.addPeriod(t, domain.PeriodKindCreditCycle, date(2025, time.January, 10), domain.PeriodStateClosed)
	f.setTotalSpent(t, dueInFebruary, 999999)

	activeCredit := f.addPeriod(t, domain.PeriodKindCreditCycle, date(2025, time.February, 10), domain.PeriodStateActive)
	f.addExpense(activeCredit.ID, f.fixed.Credit, "Restaurant", 40000, domain.Variable{})

	summary, err := f.liquidity.ComputeLiquidity(context.Background(), f.owner, january.ID)

	require.NoError(t, err)
	assert.Equal(t, "120000.00", summary.Debt.StringFixed(2))
	require.NotNil(t, summary.DebtPeriodID)
	assert.Equal(t, dueInJanuary.ID, *summary.DebtPeriodID)
	assert.Equal(t, "180000.00", summary.BaseLiquidity.StringFixed(2))
	assert.Equal(t, "160000.00", summary.Liquidity.StringFixed(2))

	require.Len(t, summary.Categories, 4)
	slugs := make([]domain.CategorySlug, len(summary.Categories))
	for i, row := range summary.Categories {
		slugs[i] = row.Slug
	}
	assert.Equal(t, []domain.CategorySlug{domain.CategorySavings, domain.CategoryRent, domain.CategoryCredit, domain.CategoryLiquidity}, slugs)

	rent := rowBySlug(summary, domain.CategoryRent)
	assert.Equal(t, "450000.00", rent.RealTotal.StringFixed(2))
	require.NotNil(t, rent.Goal)
	assert.Equal(t, "450000.00", rent.Goal.StringFixed(2))
	assert.Equal(t, january.ID, rent.PeriodID)

	credit := rowBySlug(summary, domain.CategoryCredit)
	assert.Equal(t, activeCredit.ID, credit.PeriodID)
	assert.Equal(t, "40000.00", credit.Expenses.StringFixed(2))
	require.NotNil(t, credit.Goal)
	assert.Equal(t, "200000.00", credit.Goal.StringFixed(2))

	liquidity := rowBySlug(summary, domain.CategoryLiquidity)
	assert.Nil(t, liquidity.Goal)
	assert.Equal(t, "30000.00", liquidity.Expenses.StringFixed(2))
	assert.Equal(t, "10000.00", liquidity.Contributions.StringFixed(2))
	assert.Equal(t, "Liquidity", liquidity.Name)

	// Summaries never create periods
	assert.Equal(t, 0, f.periods.CreateCalls)
}

func TestLiquidityService_ComputeLiquidity_NoCreditHistory(t *testing.T) {
	f := newFixture(t, date(2025, time.January, 10))
	january := f.addPeriod(t, domain.PeriodKindStandard, date(2025, time.January, 10), domain.PeriodStateActive)
	f.withBudget(t, january, 1000000, budgetGoals())
	f.addExpense(january.ID, f.fixed.Rent, "Rent", 450000, domain.Permanent{})
	f.addExpense(january.ID, f.fixed.Savings, "Emergency fund", 250000, domain.Permanent{})

	summary, err := f.liquidity.ComputeLiquidity(context.Background(), f.owner, january.ID)

	require.NoError(t, err)
	assert.True(t, summary.Debt.IsZero())
	assert.Nil(t, summary.DebtPeriodID)
	assert.Equal(t, "300000.00", summary.BaseLiquidity.StringFixed(2))
	assert.Equal(t, "300000.00", summary.Liquidity.StringFixed(2))
	assert.Equal(t, uuid.Nil, rowBySlug(summary, domain.CategoryCredit).PeriodID)
	assert.Equal(t, 0, f.periods.CountActive(f.owner, domain.PeriodKindCreditCycle))
}

func TestLiquidityService_ComputeLiquidity_CreditCycle(t *testing.T) {
	f := newFixture(t, date(2025, time.January, 10))
	cycle := f.addPeriod(t, domain.PeriodKindCreditCycle, date(2025, time.January, 10), domain.PeriodStateActive)
	f.addExpense(cycle.ID, f.fixed.Credit, "Flights", 75000, domain.Variable{})

	summary, err := f.liquidity.ComputeLiquidity(context.Background(), f.owner, cycle.ID)

	require.NoError(t, err)
	credit := rowBySlug(summary, domain.CategoryCredit)
	assert.Equal(t, cycle.ID, credit.PeriodID)
	assert.Equal(t, "75000.00", credit.RealTotal.StringFixed(2))
	assert.True(t, summary.Liquidity.IsZero())
	assert.True(t, summary.BaseLiquidity.IsZero())
}

func TestLiquidityService_ComputeLiquidity_ProvisionsCategories(t *testing.T) {
	f := newFixture(t, date(2025, time.January, 10))
	newcomer := uuid.New()
	p := &domain.Period{OwnerID: newcomer, Kind: domain.PeriodKindStandard, State: domain.PeriodStateActive}
	p.StartDate, p.EndDate = bounds(t, domain.PeriodKindStandard, date(2025, time.January, 10))
	f.periods.AddPeriod(p)

	summary, err := f.liquidity.ComputeLiquidity(context.Background(), newcomer, p.ID)

	require.NoError(t, err)
	assert.Len(t, summary.Categories, 4)
	categories, err := f.categories.ListByOwner(context.Background(), newcomer)
	require.NoError(t, err)
	assert.Len(t, categories, 4)
}

func TestLiquidityService_ComputeLiquidity_OtherOwner(t *testing.T) {
	f := newFixture(t, date(2025, time.January, 10))
	p := f.addPeriod(t, domain.PeriodKindStandard, date(2025, time.January, 10), domain.PeriodStateActive)

	_, err := f.liquidity.ComputeLiquidity(context.Background(), uuid.New(), p.ID)

	assert.True(t, errors.Is(err, domain.ErrPeriodNotFound))
}

func TestLiquidityFigures(t *testing.T) {
	salary, savings, rent, debt := dec(1000000), dec(250000), dec(450000), dec(120000)

	base, liquidity := liquidityFigures(salary, savings, rent, debt, nil)
	assert.Equal(t, "180000.00", base.StringFixed(2))
	assert.Equal(t, base, liquidity)

	base, liquidity = liquidityFigures(salary, savings, rent, debt, &CategoryTotals{
		Expenses:      dec(30000),
		Contributions: dec(10000),
	})
	assert.Equal(t, "180000.00", base.StringFixed(2))
	assert.Equal(t, "160000.00", liquidity.StringFixed(2))

	// Overspending is reported, not clamped
	base, _ = liquidityFigures(dec(100), dec(50), dec(80), decimal.Zero, nil)
	assert.Equal(t, "-30.00", base.StringFixed(2))
}
