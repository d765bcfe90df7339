package handler

import (
	"net/http"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/middleware"
	"github.com/dafibh/ledgerflow/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ExpenseHandler handles expense-related HTTP requests
type ExpenseHandler struct {
	ledgerService *service.LedgerService
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(ledgerService *service.LedgerService) *ExpenseHandler {
	return &ExpenseHandler{ledgerService: ledgerService}
}

// CreateExpenseRequest represents the create expense request body
type CreateExpenseRequest struct {
	CategoryID      string  `json:"categoryId"`
	Name            string  `json:"name"`
	Amount          string  `json:"amount"`
	Schedule        string  `json:"schedule"`
	RemainingCycles *int    `json:"remainingCycles,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	RecordedAt      *string `json:"recordedAt,omitempty"`
}

// UpdateEntryRequest represents the partial update body shared by expenses and contributions
type UpdateEntryRequest struct {
	Name   *string `json:"name,omitempty"`
	Amount *string `json:"amount,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// ExpenseResponse represents an expense in API responses
type ExpenseResponse struct {
	ID              string  `json:"id"`
	PeriodID        string  `json:"periodId"`
	CategoryID      string  `json:"categoryId"`
	Name            string  `json:"name"`
	Amount          string  `json:"amount"`
	Schedule        string  `json:"schedule"`
	RemainingCycles *int    `json:"remainingCycles,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	SourceEntryID   *string `json:"sourceEntryId,omitempty"`
	TemplateID      *string `json:"templateId,omitempty"`
	RecordedAt      string  `json:"recordedAt"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

// CreateExpense handles POST /api/v1/periods/:id/expenses
func (h *ExpenseHandler) CreateExpense(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	periodID, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid period ID", nil)
	}

	var req CreateExpenseRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var fieldErrors []ValidationError
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		fieldErrors = append(fieldErrors, ValidationError{Field: "categoryId", Message: "Must be a valid UUID"})
	}
	amount, err := decimalRequired(req.Amount)
	if err != nil {
		fieldErrors = append(fieldErrors, ValidationError{Field: "amount", Message: "Must be a valid decimal number"})
	}
	schedule, ok := parseSchedule(req.Schedule, req.RemainingCycles)
	if !ok {
		fieldErrors = append(fieldErrors, ValidationError{Field: "schedule", Message: "Must be variable, permanent or temporal with remainingCycles"})
	}
	recordedAt, ok := parseOptionalDate(req.RecordedAt)
	if !ok {
		fieldErrors = append(fieldErrors, ValidationError{Field: "recordedAt", Message: "Must be RFC 3339 or YYYY-MM-DD"})
	}
	if len(fieldErrors) > 0 {
		return NewValidationError(c, "Validation failed", fieldErrors)
	}

	expense, err := h.ledgerService.CreateExpense(c.Request().Context(), ownerID, periodID, service.CreateExpenseInput{
		CategoryID: categoryID,
		Name:       req.Name,
		Amount:     amount,
		Schedule:   schedule,
		Notes:      req.Notes,
		RecordedAt: recordedAt,
	})
	if err != nil {
		return respondError(c, err, "create expense")
	}

	return c.JSON(http.StatusCreated, toExpenseResponse(expense))
}

// ListExpenses handles GET /api/v1/periods/:id/expenses?recurrence=&categoryId=
func (h *ExpenseHandler) ListExpenses(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	periodID, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid period ID", nil)
	}

	var filter domain.ExpenseFilter
	if r := c.QueryParam("recurrence"); r != "" {
		recurrence := domain.Recurrence(r)
		if recurrence != domain.RecurrenceFixed && recurrence != domain.RecurrenceVariable {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "recurrence", Message: "Must be fixed or variable"},
			})
		}
		filter.Recurrence = &recurrence
	}
	if raw := c.QueryParam("categoryId"); raw != "" {
		categoryID, err := uuid.Parse(raw)
		if err != nil {
			return NewValidationError(c, "Invalid category ID", nil)
		}
		filter.CategoryID = &categoryID
	}

	expenses, err := h.ledgerService.ListExpenses(c.Request().Context(), ownerID, periodID, filter)
	if err != nil {
		return respondError(c, err, "list expenses")
	}

	response := make([]ExpenseResponse, len(expenses))
	for i, e := range expenses {
		response[i] = toExpenseResponse(e)
	}
	return c.JSON(http.StatusOK, response)
}

// GetExpense handles GET /api/v1/expenses/:id
func (h *ExpenseHandler) GetExpense(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid expense ID", nil)
	}

	expense, err := h.ledgerService.GetExpense(c.Request().Context(), ownerID, id)
	if err != nil {
		return respondError(c, err, "get expense")
	}

	return c.JSON(http.StatusOK, toExpenseResponse(expense))
}

// UpdateExpense handles PUT /api/v1/expenses/:id
func (h *ExpenseHandler) UpdateExpense(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid expense ID", nil)
	}

	patch, fieldErrors, bindErr := bindEntryPatch(c)
	if bindErr != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if len(fieldErrors) > 0 {
		return NewValidationError(c, "Validation failed", fieldErrors)
	}

	expense, err := h.ledgerService.UpdateExpense(c.Request().Context(), ownerID, id, patch)
	if err != nil {
		return respondError(c, err, "update expense")
	}

	return c.JSON(http.StatusOK, toExpenseResponse(expense))
}

// DeleteExpense handles DELETE /api/v1/expenses/:id
func (h *ExpenseHandler) DeleteExpense(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid expense ID", nil)
	}

	if err := h.ledgerService.DeleteExpense(c.Request().Context(), ownerID, id); err != nil {
		return respondError(c, err, "delete expense")
	}

	return c.NoContent(http.StatusNoContent)
}

func bindEntryPatch(c echo.Context) (domain.EntryPatch, []ValidationError, error) {
	var req UpdateEntryRequest
	if err := c.Bind(&req); err != nil {
		return domain.EntryPatch{}, nil, err
	}

	patch := domain.EntryPatch{Name: req.Name, Notes: req.Notes}
	var fieldErrors []ValidationError
	amount, err := parseOptionalAmount(req.Amount)
	if err != nil {
		fieldErrors = append(fieldErrors, ValidationError{Field: "amount", Message: "Must be a valid decimal number"})
	}
	patch.Amount = amount
	return patch, fieldErrors, nil
}

func toExpenseResponse(e *domain.Expense) ExpenseResponse {
	schedule, remaining := scheduleName(e.Schedule)
	return ExpenseResponse{
		ID:              e.ID.String(),
		PeriodID:        e.PeriodID.String(),
		CategoryID:      e.CategoryID.String(),
		Name:            e.Name,
		Amount:          e.Amount.StringFixed(2),
		Schedule:        schedule,
		RemainingCycles: remaining,
		Notes:           e.Notes,
		SourceEntryID:   uuidPtrString(e.SourceEntryID),
		TemplateID:      uuidPtrString(e.TemplateID),
		RecordedAt:      formatTime(e.RecordedAt),
		CreatedAt:       formatTime(e.CreatedAt),
		UpdatedAt:       formatTime(e.UpdatedAt),
	}
}
