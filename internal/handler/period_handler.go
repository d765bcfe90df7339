package handler

import (
	"net/http"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/middleware"
	"github.com/dafibh/ledgerflow/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// PeriodHandler handles period-related HTTP requests
type PeriodHandler struct {
	periodService    *service.PeriodService
	liquidityService *service.LiquidityService
}

// NewPeriodHandler creates a new PeriodHandler
func NewPeriodHandler(periodService *service.PeriodService, liquidityService *service.LiquidityService) *PeriodHandler {
	return &PeriodHandler{
		periodService:    periodService,
		liquidityService: liquidityService,
	}
}

// GoalsPayload carries category goals as decimal strings
type GoalsPayload struct {
	Savings      string `json:"savings"`
	Rent         string `json:"rent"`
	CreditUsable string `json:"creditUsable"`
}

// CreatePeriodRequest represents the create period request body
type CreatePeriodRequest struct {
	Kind      string        `json:"kind"`
	State     string        `json:"state,omitempty"`
	StartDate *string       `json:"startDate,omitempty"`
	EndDate   *string       `json:"endDate,omitempty"`
	Reference *string       `json:"reference,omitempty"`
	Salary    string        `json:"salary,omitempty"`
	Goals     *GoalsPayload `json:"goals,omitempty"`
}

// UpdatePeriodRequest represents the partial update body; omitted fields are unchanged
type UpdatePeriodRequest struct {
	Salary     *string       `json:"salary,omitempty"`
	Goals      *GoalsPayload `json:"goals,omitempty"`
	State      *string       `json:"state,omitempty"`
	TotalSpent *string       `json:"totalSpent,omitempty"`
}

// ClosePeriodRequest optionally overrides the end date recorded at close
type ClosePeriodRequest struct {
	EndDate *string `json:"endDate,omitempty"`
}

// PeriodResponse represents a period in API responses
type PeriodResponse struct {
	ID               string       `json:"id"`
	Kind             string       `json:"kind"`
	StartDate        string       `json:"startDate"`
	EndDate          string       `json:"endDate"`
	Salary           string       `json:"salary"`
	Goals            GoalsPayload `json:"goals"`
	State            string       `json:"state"`
	TotalSpent       string       `json:"totalSpent"`
	RolloverSourceID *string      `json:"rolloverSourceId,omitempty"`
	RolloverStatus   string       `json:"rolloverStatus"`
	CreatedAt        string       `json:"createdAt"`
	UpdatedAt        string       `json:"updatedAt"`
}

// CategorySummaryResponse is one category row of a period summary
type CategorySummaryResponse struct {
	CategoryID    string  `json:"categoryId"`
	Slug          string  `json:"slug"`
	Name          string  `json:"name"`
	PeriodID      *string `json:"periodId,omitempty"`
	Expenses      string  `json:"expenses"`
	Contributions string  `json:"contributions"`
	RealTotal     string  `json:"realTotal"`
	Goal          *string `json:"goal,omitempty"`
}

// SummaryResponse is the liquidity summary of a period
type SummaryResponse struct {
	Period        PeriodResponse            `json:"period"`
	Categories    []CategorySummaryResponse `json:"categories"`
	Debt          string                    `json:"debt"`
	DebtPeriodID  *string                   `json:"debtPeriodId,omitempty"`
	BaseLiquidity string                    `json:"baseLiquidity"`
	Liquidity     string                    `json:"liquidity"`
}

// RepairResponse reports what a repair changed
type RepairResponse struct {
	Period           PeriodResponse          `json:"period"`
	BoundsFixed      bool                    `json:"boundsFixed"`
	SalaryRecovered  bool                    `json:"salaryRecovered"`
	GoalsRecovered   bool                    `json:"goalsRecovered"`
	PredecessorID    *string                 `json:"predecessorId,omitempty"`
	Rollover         *service.RolloverResult `json:"rollover,omitempty"`
	TemplatesApplied int                     `json:"templatesApplied"`
}

// GetActive handles GET /api/v1/periods/active?kind=
func (h *PeriodHandler) GetActive(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	kind := domain.PeriodKind(c.QueryParam("kind"))
	if kind == "" {
		kind = domain.PeriodKindStandard
	}

	period, err := h.periodService.GetOrCreateActive(c.Request().Context(), ownerID, kind)
	if err != nil {
		return respondError(c, err, "get active period")
	}

	return c.JSON(http.StatusOK, toPeriodResponse(period))
}

// ListPeriods handles GET /api/v1/periods?kind=&state=
func (h *PeriodHandler) ListPeriods(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	var filter domain.PeriodFilter
	if k := c.QueryParam("kind"); k != "" {
		kind := domain.PeriodKind(k)
		filter.Kind = &kind
	}
	if s := c.QueryParam("state"); s != "" {
		state := domain.PeriodState(s)
		filter.State = &state
	}

	periods, err := h.periodService.ListPeriods(c.Request().Context(), ownerID, filter)
	if err != nil {
		return respondError(c, err, "list periods")
	}

	response := make([]PeriodResponse, len(periods))
	for i, p := range periods {
		response[i] = toPeriodResponse(p)
	}
	return c.JSON(http.StatusOK, response)
}

// CreatePeriod handles POST /api/v1/periods
func (h *PeriodHandler) CreatePeriod(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	var req CreatePeriodRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input := service.CreatePeriodInput{
		Kind:  domain.PeriodKind(req.Kind),
		State: domain.PeriodState(req.State),
	}

	var fieldErrors []ValidationError
	var ok bool
	if input.StartDate, ok = parseOptionalDate(req.StartDate); !ok {
		fieldErrors = append(fieldErrors, ValidationError{Field: "startDate", Message: "Must be RFC 3339 or YYYY-MM-DD"})
	}
	if input.EndDate, ok = parseOptionalDate(req.EndDate); !ok {
		fieldErrors = append(fieldErrors, ValidationError{Field: "endDate", Message: "Must be RFC 3339 or YYYY-MM-DD"})
	}
	if input.Reference, ok = parseOptionalDate(req.Reference); !ok {
		fieldErrors = append(fieldErrors, ValidationError{Field: "reference", Message: "Must be RFC 3339 or YYYY-MM-DD"})
	}
	salary, err := parseAmount(req.Salary)
	if err != nil {
		fieldErrors = append(fieldErrors, ValidationError{Field: "salary", Message: "Must be a valid decimal number"})
	}
	input.Salary = salary
	if req.Goals != nil {
		goals, goalErrors := parseGoals(*req.Goals)
		fieldErrors = append(fieldErrors, goalErrors...)
		input.Goals = goals
	}
	if len(fieldErrors) > 0 {
		return NewValidationError(c, "Validation failed", fieldErrors)
	}

	period, err := h.periodService.CreatePeriod(c.Request().Context(), ownerID, input)
	if err != nil {
		return respondError(c, err, "create period")
	}

	return c.JSON(http.StatusCreated, toPeriodResponse(period))
}

// GetPeriod handles GET /api/v1/periods/:id
func (h *PeriodHandler) GetPeriod(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid period ID", nil)
	}

	period, err := h.periodService.GetPeriod(c.Request().Context(), ownerID, id)
	if err != nil {
		return respondError(c, err, "get period")
	}

	return c.JSON(http.StatusOK, toPeriodResponse(period))
}

// UpdatePeriod handles PUT /api/v1/periods/:id
func (h *PeriodHandler) UpdatePeriod(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid period ID", nil)
	}

	var req UpdatePeriodRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var patch domain.PeriodPatch
	var fieldErrors []ValidationError
	if patch.Salary, err = parseOptionalAmount(req.Salary); err != nil {
		fieldErrors = append(fieldErrors, ValidationError{Field: "salary", Message: "Must be a valid decimal number"})
	}
	if patch.TotalSpent, err = parseOptionalAmount(req.TotalSpent); err != nil {
		fieldErrors = append(fieldErrors, ValidationError{Field: "totalSpent", Message: "Must be a valid decimal number"})
	}
	if req.Goals != nil {
		goals, goalErrors := parseGoals(*req.Goals)
		fieldErrors = append(fieldErrors, goalErrors...)
		patch.Goals = &goals
	}
	if req.State != nil {
		state := domain.PeriodState(*req.State)
		patch.State = &state
	}
	if len(fieldErrors) > 0 {
		return NewValidationError(c, "Validation failed", fieldErrors)
	}

	period, err := h.periodService.UpdatePeriod(c.Request().Context(), ownerID, id, patch)
	if err != nil {
		return respondError(c, err, "update period")
	}

	return c.JSON(http.StatusOK, toPeriodResponse(period))
}

// DeletePeriod handles DELETE /api/v1/periods/:id
func (h *PeriodHandler) DeletePeriod(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid period ID", nil)
	}

	if err := h.periodService.DeletePeriod(c.Request().Context(), ownerID, id); err != nil {
		return respondError(c, err, "delete period")
	}

	return c.NoContent(http.StatusNoContent)
}

// ClosePeriod handles POST /api/v1/periods/:id/close
func (h *PeriodHandler) ClosePeriod(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid period ID", nil)
	}

	var req ClosePeriodRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return NewValidationError(c, "Invalid request body", nil)
		}
	}
	endDate, ok := parseOptionalDate(req.EndDate)
	if !ok {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "endDate", Message: "Must be RFC 3339 or YYYY-MM-DD"},
		})
	}

	period, err := h.periodService.ClosePeriod(c.Request().Context(), ownerID, id, endDate)
	if err != nil {
		return respondError(c, err, "close period")
	}

	return c.JSON(http.StatusOK, toPeriodResponse(period))
}

// GetSummary handles GET /api/v1/periods/:id/summary
func (h *PeriodHandler) GetSummary(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid period ID", nil)
	}

	summary, err := h.liquidityService.ComputeLiquidity(c.Request().Context(), ownerID, id)
	if err != nil {
		return respondError(c, err, "compute period summary")
	}

	return c.JSON(http.StatusOK, toSummaryResponse(summary))
}

// RepairActive handles POST /api/v1/periods/repair?kind=
func (h *PeriodHandler) RepairActive(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	kind := domain.PeriodKind(c.QueryParam("kind"))
	if kind == "" {
		kind = domain.PeriodKindStandard
	}

	report, err := h.periodService.RepairActive(c.Request().Context(), ownerID, kind)
	if err != nil {
		return respondError(c, err, "repair active period")
	}

	log.Info().
		Str("owner_id", ownerID.String()).
		Str("kind", string(kind)).
		Msg("Repair requested through API")

	response := RepairResponse{
		Period:          toPeriodResponse(report.Period),
		BoundsFixed:     report.BoundsFixed,
		SalaryRecovered: report.SalaryRecovered,
		GoalsRecovered:  report.GoalsRecovered,
		PredecessorID:   uuidPtrString(report.PredecessorID),
		Rollover:        report.Rollover,
	}
	if report.Templates != nil {
		response.TemplatesApplied = len(report.Templates.Created)
	}
	return c.JSON(http.StatusOK, response)
}

func parseGoals(p GoalsPayload) (domain.CategoryGoals, []ValidationError) {
	var goals domain.CategoryGoals
	var errs []ValidationError
	var err error
	if goals.Savings, err = parseAmount(p.Savings); err != nil {
		errs = append(errs, ValidationError{Field: "goals.savings", Message: "Must be a valid decimal number"})
	}
	if goals.Rent, err = parseAmount(p.Rent); err != nil {
		errs = append(errs, ValidationError{Field: "goals.rent", Message: "Must be a valid decimal number"})
	}
	if goals.CreditUsable, err = parseAmount(p.CreditUsable); err != nil {
		errs = append(errs, ValidationError{Field: "goals.creditUsable", Message: "Must be a valid decimal number"})
	}
	return goals, errs
}

func toPeriodResponse(p *domain.Period) PeriodResponse {
	return PeriodResponse{
		ID:        p.ID.String(),
		Kind:      string(p.Kind),
		StartDate: formatTime(p.StartDate),
		EndDate:   formatTime(p.EndDate),
		Salary:    p.Salary.StringFixed(2),
		Goals: GoalsPayload{
			Savings:      p.Goals.Savings.StringFixed(2),
			Rent:         p.Goals.Rent.StringFixed(2),
			CreditUsable: p.Goals.CreditUsable.StringFixed(2),
		},
		State:            string(p.State),
		TotalSpent:       p.TotalSpent.StringFixed(2),
		RolloverSourceID: uuidPtrString(p.RolloverSourceID),
		RolloverStatus:   string(p.RolloverStatus),
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
	}
}

func toSummaryResponse(s *domain.LiquiditySummary) SummaryResponse {
	rows := make([]CategorySummaryResponse, len(s.Categories))
	for i, row := range s.Categories {
		r := CategorySummaryResponse{
			CategoryID:    row.CategoryID.String(),
			Slug:          string(row.Slug),
			Name:          row.Name,
			Expenses:      row.Expenses.StringFixed(2),
			Contributions: row.Contributions.StringFixed(2),
			RealTotal:     row.RealTotal.StringFixed(2),
		}
		if row.PeriodID != uuid.Nil {
			id := row.PeriodID.String()
			r.PeriodID = &id
		}
		if row.Goal != nil {
			goal := row.Goal.StringFixed(2)
			r.Goal = &goal
		}
		rows[i] = r
	}
	return SummaryResponse{
		Period:        toPeriodResponse(s.Period),
		Categories:    rows,
		Debt:          s.Debt.StringFixed(2),
		DebtPeriodID:  uuidPtrString(s.DebtPeriodID),
		BaseLiquidity: s.BaseLiquidity.StringFixed(2),
		Liquidity:     s.Liquidity.StringFixed(2),
	}
}
