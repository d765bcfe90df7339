package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/util"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestGetActive_CreatesCurrentPeriod(t *testing.T) {
	f := newHandlerFixture(t)

	c, rec := newRequest(http.MethodGet, "/api/v1/periods/active", "", f.owner, "")
	if err := f.period.GetActive(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response PeriodResponse
	decode(t, rec, &response)

	if response.Kind != string(domain.PeriodKindStandard) {
		t.Errorf("Expected kind standard, got %s", response.Kind)
	}
	if response.State != string(domain.PeriodStateActive) {
		t.Errorf("Expected state active, got %s", response.State)
	}
	if response.Salary != "0.00" {
		t.Errorf("Expected salary 0.00, got %s", response.Salary)
	}
	if f.periods.CountActive(f.owner, domain.PeriodKindStandard) != 1 {
		t.Errorf("Expected exactly one active period")
	}
}

func TestGetActive_CreditCycleKind(t *testing.T) {
	f := newHandlerFixture(t)

	c, rec := newRequest(http.MethodGet, "/api/v1/periods/active?kind=credit_cycle", "", f.owner, "")
	if err := f.period.GetActive(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var response PeriodResponse
	decode(t, rec, &response)
	if response.Kind != string(domain.PeriodKindCreditCycle) {
		t.Errorf("Expected kind credit_cycle, got %s", response.Kind)
	}

	start, _, err := util.CreditCycleBounds(time.Now())
	if err != nil {
		t.Fatalf("CreditCycleBounds: %v", err)
	}
	if response.StartDate != start.Format(time.RFC3339) {
		t.Errorf("Expected start %s, got %s", start.Format(time.RFC3339), response.StartDate)
	}
}

func TestGetActive_InvalidKind(t *testing.T) {
	f := newHandlerFixture(t)

	c, rec := newRequest(http.MethodGet, "/api/v1/periods/active?kind=weekly", "", f.owner, "")
	if err := f.period.GetActive(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetActive_NoOwner(t *testing.T) {
	f := newHandlerFixture(t)

	c, rec := newRequest(http.MethodGet, "/api/v1/periods/active", "", uuid.Nil, "")
	if err := f.period.GetActive(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestCreatePeriod(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "projected with explicit bounds",
			body:       `{"kind":"standard","state":"projected","startDate":"2030-01-01","endDate":"2030-01-31","salary":"5000","goals":{"savings":"1000","rent":"1500","creditUsable":"500"}}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "reference date",
			body:       `{"kind":"credit_cycle","state":"projected","reference":"2030-02-10"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "goals exceed salary",
			body:       `{"kind":"standard","state":"projected","reference":"2030-03-10","salary":"100","goals":{"savings":"200"}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed salary",
			body:       `{"kind":"standard","salary":"lots"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed date",
			body:       `{"kind":"standard","startDate":"01/01/2030","endDate":"2030-01-31"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "start without end",
			body:       `{"kind":"standard","startDate":"2030-01-01"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid JSON",
			body:       `{invalid json}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)

			c, rec := newRequest(http.MethodPost, "/api/v1/periods", tt.body, f.owner, "")
			if err := f.period.CreatePeriod(c); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreatePeriod_ExplicitBoundsResponse(t *testing.T) {
	f := newHandlerFixture(t)

	body := `{"kind":"standard","state":"projected","startDate":"2030-01-01","endDate":"2030-01-31","salary":"5000","goals":{"savings":"1000","rent":"1500","creditUsable":"500"}}`
	c, rec := newRequest(http.MethodPost, "/api/v1/periods", body, f.owner, "")
	if err := f.period.CreatePeriod(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var response PeriodResponse
	decode(t, rec, &response)

	if response.StartDate != "2030-01-01T00:00:00Z" {
		t.Errorf("Expected start 2030-01-01T00:00:00Z, got %s", response.StartDate)
	}
	if response.Salary != "5000.00" {
		t.Errorf("Expected salary 5000.00, got %s", response.Salary)
	}
	if response.Goals.Rent != "1500.00" {
		t.Errorf("Expected rent goal 1500.00, got %s", response.Goals.Rent)
	}
	if response.RolloverStatus != string(domain.RolloverStatusNone) {
		t.Errorf("Expected rollover status none, got %s", response.RolloverStatus)
	}
}

func TestCreatePeriod_SecondActiveConflicts(t *testing.T) {
	f := newHandlerFixture(t)
	f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)

	c, rec := newRequest(http.MethodPost, "/api/v1/periods", `{"kind":"standard","state":"active"}`, f.owner, "")
	if err := f.period.CreatePeriod(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetPeriod(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)

	t.Run("found", func(t *testing.T) {
		c, rec := newRequest(http.MethodGet, "/api/v1/periods/"+p.ID.String(), "", f.owner, p.ID.String())
		if err := f.period.GetPeriod(c); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.Code)
		}
		var response PeriodResponse
		decode(t, rec, &response)
		if response.ID != p.ID.String() {
			t.Errorf("Expected id %s, got %s", p.ID, response.ID)
		}
	})

	t.Run("other owner", func(t *testing.T) {
		c, rec := newRequest(http.MethodGet, "/api/v1/periods/"+p.ID.String(), "", uuid.New(), p.ID.String())
		if err := f.period.GetPeriod(c); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", rec.Code)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		c, rec := newRequest(http.MethodGet, "/api/v1/periods/abc", "", f.owner, "abc")
		if err := f.period.GetPeriod(c); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
	})
}

func TestListPeriods_Filters(t *testing.T) {
	f := newHandlerFixture(t)
	f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)
	f.currentPeriod(t, domain.PeriodKindCreditCycle, domain.PeriodStateActive)

	c, rec := newRequest(http.MethodGet, "/api/v1/periods?kind=credit_cycle", "", f.owner, "")
	if err := f.period.ListPeriods(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var response []PeriodResponse
	decode(t, rec, &response)
	if len(response) != 1 {
		t.Fatalf("Expected 1 period, got %d", len(response))
	}
	if response[0].Kind != string(domain.PeriodKindCreditCycle) {
		t.Errorf("Expected credit_cycle, got %s", response[0].Kind)
	}

	c, rec = newRequest(http.MethodGet, "/api/v1/periods?state=archived", "", f.owner, "")
	if err := f.period.ListPeriods(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown state, got %d", rec.Code)
	}
}

func TestUpdatePeriod(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)

	body := `{"salary":"4000","goals":{"savings":"500","rent":"1200","creditUsable":"300"}}`
	c, rec := newRequest(http.MethodPut, "/api/v1/periods/"+p.ID.String(), body, f.owner, p.ID.String())
	if err := f.period.UpdatePeriod(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response PeriodResponse
	decode(t, rec, &response)
	if response.Salary != "4000.00" {
		t.Errorf("Expected salary 4000.00, got %s", response.Salary)
	}
	if response.Goals.Savings != "500.00" {
		t.Errorf("Expected savings goal 500.00, got %s", response.Goals.Savings)
	}
}

func TestUpdatePeriod_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		state      domain.PeriodState
		body       string
		wantStatus int
	}{
		{"malformed salary", domain.PeriodStateActive, `{"salary":"x"}`, http.StatusBadRequest},
		{"goals exceed salary", domain.PeriodStateActive, `{"salary":"100","goals":{"rent":"500"}}`, http.StatusBadRequest},
		{"total spent on standard", domain.PeriodStateActive, `{"totalSpent":"10"}`, http.StatusBadRequest},
		{"closed period", domain.PeriodStateClosed, `{"salary":"100"}`, http.StatusConflict},
		{"active back to projected", domain.PeriodStateActive, `{"state":"projected"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			p := f.currentPeriod(t, domain.PeriodKindStandard, tt.state)

			c, rec := newRequest(http.MethodPut, "/api/v1/periods/"+p.ID.String(), tt.body, f.owner, p.ID.String())
			if err := f.period.UpdatePeriod(c); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestClosePeriod(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)
	endDate := p.StartDate.AddDate(0, 0, 9).Format(dateLayout)

	c, rec := newRequest(http.MethodPost, "/api/v1/periods/"+p.ID.String()+"/close", `{"endDate":"`+endDate+`"}`, f.owner, p.ID.String())
	if err := f.period.ClosePeriod(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response PeriodResponse
	decode(t, rec, &response)
	if response.State != string(domain.PeriodStateClosed) {
		t.Errorf("Expected state closed, got %s", response.State)
	}
	if response.EndDate != endDate+"T00:00:00Z" {
		t.Errorf("Expected end date %sT00:00:00Z, got %s", endDate, response.EndDate)
	}

	// Closing again without a body is a no-op
	c, rec = newRequest(http.MethodPost, "/api/v1/periods/"+p.ID.String()+"/close", "", f.owner, p.ID.String())
	if err := f.period.ClosePeriod(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 on second close, got %d", rec.Code)
	}
	closedEvents := 0
	for _, typ := range f.publisher.Types() {
		if typ == "period.closed" {
			closedEvents++
		}
	}
	if closedEvents != 1 {
		t.Errorf("Expected one period.closed event, got %d", closedEvents)
	}
}

func TestClosePeriod_EndBeforeStart(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)
	endDate := p.StartDate.AddDate(0, 0, -1).Format(dateLayout)

	c, rec := newRequest(http.MethodPost, "/api/v1/periods/"+p.ID.String()+"/close", `{"endDate":"`+endDate+`"}`, f.owner, p.ID.String())
	if err := f.period.ClosePeriod(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestDeletePeriod(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)

	c, rec := newRequest(http.MethodDelete, "/api/v1/periods/"+p.ID.String(), "", f.owner, p.ID.String())
	if err := f.period.DeletePeriod(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
	if f.periods.Get(p.ID) != nil {
		t.Error("Expected period to be deleted")
	}

	c, rec = newRequest(http.MethodDelete, "/api/v1/periods/"+p.ID.String(), "", f.owner, p.ID.String())
	if err := f.period.DeletePeriod(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", rec.Code)
	}
}

func TestGetSummary(t *testing.T) {
	f := newHandlerFixture(t)
	start, end, err := util.StandardBounds(time.Now())
	if err != nil {
		t.Fatalf("StandardBounds: %v", err)
	}
	p := &domain.Period{
		OwnerID:   f.owner,
		Kind:      domain.PeriodKindStandard,
		StartDate: start,
		EndDate:   end,
		Salary:    decimal.NewFromInt(300000),
		Goals:     domain.CategoryGoals{Savings: decimal.NewFromInt(60000)},
		State:     domain.PeriodStateActive,
	}
	f.periods.AddPeriod(p)
	f.addExpense(p.ID, f.fixed.Savings, "Emergency fund", 50000)
	f.addExpense(p.ID, f.fixed.Liquidity, "Groceries", 20000)

	c, rec := newRequest(http.MethodGet, "/api/v1/periods/"+p.ID.String()+"/summary", "", f.owner, p.ID.String())
	if err := f.period.GetSummary(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response SummaryResponse
	decode(t, rec, &response)

	if response.Debt != "0.00" {
		t.Errorf("Expected debt 0.00, got %s", response.Debt)
	}
	if response.BaseLiquidity != "250000.00" {
		t.Errorf("Expected base liquidity 250000.00, got %s", response.BaseLiquidity)
	}
	if response.Liquidity != "230000.00" {
		t.Errorf("Expected liquidity 230000.00, got %s", response.Liquidity)
	}
	if len(response.Categories) != 4 {
		t.Fatalf("Expected 4 category rows, got %d", len(response.Categories))
	}
	savings := response.Categories[0]
	if savings.Slug != string(domain.CategorySavings) || savings.RealTotal != "50000.00" {
		t.Errorf("Expected savings row with 50000.00, got %s %s", savings.Slug, savings.RealTotal)
	}
	if savings.Goal == nil || *savings.Goal != "50000.00" {
		t.Errorf("Expected savings goal to track its real total, got %v", savings.Goal)
	}
	if response.Categories[3].Goal != nil {
		t.Errorf("Expected liquidity row without a goal, got %v", *response.Categories[3].Goal)
	}
}

func TestGetSummary_UnknownPeriod(t *testing.T) {
	f := newHandlerFixture(t)
	id := uuid.New().String()

	c, rec := newRequest(http.MethodGet, "/api/v1/periods/"+id+"/summary", "", f.owner, id)
	if err := f.period.GetSummary(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestRepairActive_NoActivePeriod(t *testing.T) {
	f := newHandlerFixture(t)

	c, rec := newRequest(http.MethodPost, "/api/v1/periods/repair", "", f.owner, "")
	if err := f.period.RepairActive(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRepairActive_AlignedPeriod(t *testing.T) {
	f := newHandlerFixture(t)
	f.currentPeriod(t, domain.PeriodKindStandard, domain.PeriodStateActive)

	c, rec := newRequest(http.MethodPost, "/api/v1/periods/repair?kind=standard", "", f.owner, "")
	if err := f.period.RepairActive(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response RepairResponse
	decode(t, rec, &response)
	if response.BoundsFixed {
		t.Error("Expected aligned bounds to be left alone")
	}
}
