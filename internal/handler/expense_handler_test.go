package handler

import (
	"net/http"
	"testing"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateExpense_Success(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)

	body := `{"categoryId":"` + f.fixed.Rent.String() + `","name":"  Apartment  ","amount":"1200.5","schedule":"temporal","remainingCycles":6,"notes":"lease"}`
	c, rec := newRequest(http.MethodPost, "/api/v1/periods/"+p.ID.String()+"/expenses", body, f.owner, p.ID.String())
	require.NoError(t, f.expense.CreateExpense(c))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var response ExpenseResponse
	decode(t, rec, &response)

	assert.Equal(t, "Apartment", response.Name)
	assert.Equal(t, "1200.50", response.Amount)
	assert.Equal(t, scheduleTemporal, response.Schedule)
	require.NotNil(t, response.RemainingCycles)
	assert.Equal(t, 6, *response.RemainingCycles)
	assert.Equal(t, p.ID.String(), response.PeriodID)
	assert.Contains(t, f.publisher.Types(), "expense.created")
}

func TestCreateExpense_DefaultsToVariable(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)

	body := `{"categoryId":"` + f.fixed.Liquidity.String() + `","name":"Coffee","amount":"4"}`
	c, rec := newRequest(http.MethodPost, "/api/v1/periods/"+p.ID.String()+"/expenses", body, f.owner, p.ID.String())
	require.NoError(t, f.expense.CreateExpense(c))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var response ExpenseResponse
	decode(t, rec, &response)
	assert.Equal(t, scheduleVariable, response.Schedule)
	assert.Nil(t, response.RemainingCycles)
}

func TestCreateExpense_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		state      domain.PeriodState
		body       func(f *handlerFixture) string
		wantStatus int
	}{
		{
			name:  "closed period",
			state: domain.PeriodStateClosed,
			body: func(f *handlerFixture) string {
				return `{"categoryId":"` + f.fixed.Rent.String() + `","name":"Rent","amount":"10"}`
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:  "foreign category",
			state: domain.PeriodStateActive,
			body: func(f *handlerFixture) string {
				return `{"categoryId":"` + uuid.New().String() + `","name":"Rent","amount":"10"}`
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:  "malformed category",
			state: domain.PeriodStateActive,
			body: func(f *handlerFixture) string {
				return `{"categoryId":"rent","name":"Rent","amount":"10"}`
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "missing amount",
			state: domain.PeriodStateActive,
			body: func(f *handlerFixture) string {
				return `{"categoryId":"` + f.fixed.Rent.String() + `","name":"Rent"}`
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "zero amount",
			state: domain.PeriodStateActive,
			body: func(f *handlerFixture) string {
				return `{"categoryId":"` + f.fixed.Rent.String() + `","name":"Rent","amount":"0"}`
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "temporal without cycles",
			state: domain.PeriodStateActive,
			body: func(f *handlerFixture) string {
				return `{"categoryId":"` + f.fixed.Rent.String() + `","name":"Rent","amount":"10","schedule":"temporal"}`
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "unknown schedule",
			state: domain.PeriodStateActive,
			body: func(f *handlerFixture) string {
				return `{"categoryId":"` + f.fixed.Rent.String() + `","name":"Rent","amount":"10","schedule":"weekly"}`
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "blank name",
			state: domain.PeriodStateActive,
			body: func(f *handlerFixture) string {
				return `{"categoryId":"` + f.fixed.Rent.String() + `","name":"   ","amount":"10"}`
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			p := f.currentPeriod(t, domain.PeriodKindStandard, tt.state)

			c, rec := newRequest(http.MethodPost, "/api/v1/periods/"+p.ID.String()+"/expenses", tt.body(f), f.owner, p.ID.String())
			require.NoError(t, f.expense.CreateExpense(c))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestListExpenses_RecurrenceFilter(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)
	f.addExpense(p.ID, f.fixed.Rent, "Apartment", 1200)
	f.expenses.AddExpense(&domain.Expense{
		OwnerID:    f.owner,
		PeriodID:   p.ID,
		CategoryID: f.fixed.Liquidity,
		Name:       "Dinner",
		Amount:     dec(40),
		Schedule:   domain.Variable{},
	})

	c, rec := newRequest(http.MethodGet, "/api/v1/periods/"+p.ID.String()+"/expenses?recurrence=fixed", "", f.owner, p.ID.String())
	require.NoError(t, f.expense.ListExpenses(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var response []ExpenseResponse
	decode(t, rec, &response)
	require.Len(t, response, 1)
	assert.Equal(t, "Apartment", response[0].Name)
	assert.Equal(t, schedulePermanent, response[0].Schedule)

	c, rec = newRequest(http.MethodGet, "/api/v1/periods/"+p.ID.String()+"/expenses?recurrence=sometimes", "", f.owner, p.ID.String())
	require.NoError(t, f.expense.ListExpenses(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateExpense(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)
	e := f.addExpense(p.ID, f.fixed.Rent, "Apartment", 1200)

	c, rec := newRequest(http.MethodPut, "/api/v1/expenses/"+e.ID.String(), `{"amount":"1300"}`, f.owner, e.ID.String())
	require.NoError(t, f.expense.UpdateExpense(c))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response ExpenseResponse
	decode(t, rec, &response)
	assert.Equal(t, "1300.00", response.Amount)
	assert.Equal(t, "Apartment", response.Name)

	c, rec = newRequest(http.MethodPut, "/api/v1/expenses/"+e.ID.String(), `{"amount":"abc"}`, f.owner, e.ID.String())
	require.NoError(t, f.expense.UpdateExpense(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteExpense_ClosedPeriod(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateClosed)
	e := f.addExpense(p.ID, f.fixed.Rent, "Apartment", 1200)

	c, rec := newRequest(http.MethodDelete, "/api/v1/expenses/"+e.ID.String(), "", f.owner, e.ID.String())
	require.NoError(t, f.expense.DeleteExpense(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var problem ProblemDetails
	decode(t, rec, &problem)
	assert.Equal(t, ErrorTypeInvalidState, problem.Type)
}

func TestGetExpense_OtherOwner(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)
	e := f.addExpense(p.ID, f.fixed.Rent, "Apartment", 1200)

	c, rec := newRequest(http.MethodGet, "/api/v1/expenses/"+e.ID.String(), "", uuid.New(), e.ID.String())
	require.NoError(t, f.expense.GetExpense(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newRequest(http.MethodGet, "/api/v1/expenses/"+e.ID.String(), "", f.owner, e.ID.String())
	require.NoError(t, f.expense.GetExpense(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
