package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/middleware"
	"github.com/dafibh/ledgerflow/internal/service"
	"github.com/dafibh/ledgerflow/internal/testutil"
	"github.com/dafibh/ledgerflow/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type handlerFixture struct {
	owner uuid.UUID
	fixed domain.FixedCategories

	periods       *testutil.MockPeriodRepository
	expenses      *testutil.MockExpenseRepository
	contributions *testutil.MockContributionRepository
	categories    *testutil.MockCategoryRepository
	templates     *testutil.MockTemplateRepository
	publisher     *testutil.RecordingPublisher

	period       *PeriodHandler
	expense      *ExpenseHandler
	contribution *ContributionHandler
	category     *CategoryHandler
	template     *TemplateHandler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		owner:         uuid.New(),
		periods:       testutil.NewMockPeriodRepository(),
		expenses:      testutil.NewMockExpenseRepository(),
		contributions: testutil.NewMockContributionRepository(),
		categories:    testutil.NewMockCategoryRepository(),
		templates:     testutil.NewMockTemplateRepository(),
		publisher:     &testutil.RecordingPublisher{},
	}
	f.fixed = f.categories.SeedCategories(f.owner)

	aggregator := service.NewLedgerAggregator(f.expenses, f.contributions)
	rollover := service.NewRolloverService(f.expenses, f.contributions)
	templateService := service.NewTemplateService(f.templates, f.expenses, f.categories, f.publisher)
	periodService := service.NewPeriodService(f.periods, rollover, aggregator, f.publisher)
	periodService.SetTemplateService(templateService)
	categoryService := service.NewCategoryService(f.categories)
	ledgerService := service.NewLedgerService(f.periods, f.expenses, f.contributions, f.categories, aggregator, f.publisher)
	liquidityService := service.NewLiquidityService(f.periods, aggregator, categoryService)

	f.period = NewPeriodHandler(periodService, liquidityService)
	f.expense = NewExpenseHandler(ledgerService)
	f.contribution = NewContributionHandler(ledgerService)
	f.category = NewCategoryHandler(categoryService)
	f.template = NewTemplateHandler(templateService, periodService)
	return f
}

// currentPeriod stores a period of the given kind covering today
func (f *handlerFixture) currentPeriod(t *testing.T, kind domain.PeriodKind, state domain.PeriodState) *domain.Period {
	t.Helper()
	start, end, err := util.PeriodBounds(kind, time.Now().UTC())
	if err != nil {
		t.Fatalf("PeriodBounds: %v", err)
	}
	p := &domain.Period{
		OwnerID:   f.owner,
		Kind:      kind,
		StartDate: start,
		EndDate:   end,
		State:     state,
	}
	f.periods.AddPeriod(p)
	return p
}

func (f *handlerFixture) addExpense(periodID, categoryID uuid.UUID, name string, amount int64) *domain.Expense {
	e := &domain.Expense{
		OwnerID:    f.owner,
		PeriodID:   periodID,
		CategoryID: categoryID,
		Name:       name,
		Amount:     dec(amount),
		Schedule:   domain.Permanent{},
		RecordedAt: time.Now(),
	}
	f.expenses.AddExpense(e)
	return e
}

// newRequest builds an echo context carrying the owner and optional :id param
func newRequest(method, target, body string, owner uuid.UUID, id string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if owner != uuid.Nil {
		req = req.WithContext(middleware.WithOwnerID(req.Context(), owner))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to unmarshal response: %v, body: %s", err, rec.Body.String())
	}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
