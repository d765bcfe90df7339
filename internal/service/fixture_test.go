package service

import (
	"testing"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/testutil"
	"github.com/dafibh/ledgerflow/internal/util"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fixture wires every service to in-memory stores for one owner
type fixture struct {
	owner uuid.UUID
	fixed domain.FixedCategories

	periods       *testutil.MockPeriodRepository
	expenses      *testutil.MockExpenseRepository
	contributions *testutil.MockContributionRepository
	categories    *testutil.MockCategoryRepository
	templates     *testutil.MockTemplateRepository
	publisher     *testutil.RecordingPublisher

	aggregator  *LedgerAggregator
	rollover    *RolloverService
	periodSvc   *PeriodService
	ledgerSvc   *LedgerService
	liquidity   *LiquidityService
	categorySvc *CategoryService
	templateSvc *TemplateService
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	f := &fixture{
		owner:         uuid.New(),
		periods:       testutil.NewMockPeriodRepository(),
		expenses:      testutil.NewMockExpenseRepository(),
		contributions: testutil.NewMockContributionRepository(),
		categories:    testutil.NewMockCategoryRepository(),
		templates:     testutil.NewMockTemplateRepository(),
		publisher:     &testutil.RecordingPublisher{},
	}
	f.fixed = f.categories.SeedCategories(f.owner)

	f.aggregator = NewLedgerAggregator(f.expenses, f.contributions)
	f.rollover = NewRolloverService(f.expenses, f.contributions)
	f.templateSvc = NewTemplateService(f.templates, f.expenses, f.categories, f.publisher)
	f.periodSvc = NewPeriodService(f.periods, f.rollover, f.aggregator, f.publisher)
	f.periodSvc.SetClock(func() time.Time { return now })
	f.periodSvc.SetTemplateService(f.templateSvc)
	f.categorySvc = NewCategoryService(f.categories)
	f.ledgerSvc = NewLedgerService(f.periods, f.expenses, f.contributions, f.categories, f.aggregator, f.publisher)
	f.liquidity = NewLiquidityService(f.periods, f.aggregator, f.categorySvc)
	return f
}

// addPeriod stores a period of the given kind covering ref
func (f *fixture) addPeriod(t *testing.T, kind domain.PeriodKind, ref time.Time, state domain.PeriodState) *domain.Period {
	t.Helper()
	start, end := bounds(t, kind, ref)
	p := &domain.Period{
		OwnerID:        f.owner,
		Kind:           kind,
		StartDate:      start,
		EndDate:        end,
		State:          state,
		RolloverStatus: domain.RolloverStatusNone,
	}
	f.periods.AddPeriod(p)
	return p
}

func (f *fixture) addExpense(periodID, categoryID uuid.UUID, name string, amount int64, schedule domain.Schedule) *domain.Expense {
	e := &domain.Expense{
		OwnerID:    f.owner,
		PeriodID:   periodID,
		CategoryID: categoryID,
		Name:       name,
		Amount:     decimal.NewFromInt(amount),
		Schedule:   schedule,
	}
	f.expenses.AddExpense(e)
	return e
}

func (f *fixture) addContribution(periodID, categoryID uuid.UUID, name string, amount int64, fixed bool) *domain.Contribution {
	c := &domain.Contribution{
		OwnerID:    f.owner,
		PeriodID:   periodID,
		CategoryID: categoryID,
		Name:       name,
		Amount:     decimal.NewFromInt(amount),
		IsFixed:    fixed,
	}
	f.contributions.AddContribution(c)
	return c
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func bounds(t *testing.T, kind domain.PeriodKind, ref time.Time) (time.Time, time.Time) {
	t.Helper()
	start, end, err := util.PeriodBounds(kind, ref)
	if err != nil {
		t.Fatalf("PeriodBounds(%s, %s): %v", kind, ref, err)
	}
	return start, end
}
