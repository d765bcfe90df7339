package handler

import (
	"net/http"
	"strconv"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/middleware"
	"github.com/dafibh/ledgerflow/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// TemplateHandler handles expense template HTTP requests
type TemplateHandler struct {
	templateService *service.TemplateService
	periodService   *service.PeriodService
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templateService *service.TemplateService, periodService *service.PeriodService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		periodService:   periodService,
	}
}

// CreateTemplateRequest represents the create template request body
type CreateTemplateRequest struct {
	CategoryID    string  `json:"categoryId"`
	Name          string  `json:"name"`
	Amount        string  `json:"amount"`
	ChargeDay     int     `json:"chargeDay"`
	PaymentMethod string  `json:"paymentMethod"`
	Active        *bool   `json:"active,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// UpdateTemplateRequest represents the partial template update body
type UpdateTemplateRequest struct {
	Name          *string `json:"name,omitempty"`
	Amount        *string `json:"amount,omitempty"`
	ChargeDay     *int    `json:"chargeDay,omitempty"`
	PaymentMethod *string `json:"paymentMethod,omitempty"`
	Active        *bool   `json:"active,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// TemplateResponse represents an expense template in API responses
type TemplateResponse struct {
	ID            string  `json:"id"`
	CategoryID    string  `json:"categoryId"`
	Name          string  `json:"name"`
	Amount        string  `json:"amount"`
	ChargeDay     int     `json:"chargeDay"`
	PaymentMethod string  `json:"paymentMethod"`
	PeriodKind    string  `json:"periodKind"`
	Active        bool    `json:"active"`
	Notes         *string `json:"notes,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// ApplyTemplatesResponse reports the expenses created from templates
type ApplyTemplatesResponse struct {
	PeriodID       string            `json:"periodId"`
	Created        []ExpenseResponse `json:"created"`
	AlreadyApplied int               `json:"alreadyApplied"`
}

// CreateTemplate handles POST /api/v1/templates
func (h *TemplateHandler) CreateTemplate(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	var req CreateTemplateRequest
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
	if len(fieldErrors) > 0 {
		return NewValidationError(c, "Validation failed", fieldErrors)
	}

	template, err := h.templateService.CreateTemplate(c.Request().Context(), ownerID, service.CreateTemplateInput{
		CategoryID:    categoryID,
		Name:          req.Name,
		Amount:        amount,
		ChargeDay:     req.ChargeDay,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Active:        req.Active,
		Notes:         req.Notes,
	})
	if err != nil {
		return respondError(c, err, "create template")
	}

	return c.JSON(http.StatusCreated, toTemplateResponse(template))
}

// ListTemplates handles GET /api/v1/templates?active=&kind=
func (h *TemplateHandler) ListTemplates(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	var filter domain.TemplateFilter
	if raw := c.QueryParam("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "active", Message: "Must be true or false"},
			})
		}
		filter.Active = &active
	}
	if raw := c.QueryParam("kind"); raw != "" {
		kind := domain.PeriodKind(raw)
		filter.Kind = &kind
	}

	templates, err := h.templateService.ListTemplates(c.Request().Context(), ownerID, filter)
	if err != nil {
		return respondError(c, err, "list templates")
	}

	response := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		response[i] = toTemplateResponse(t)
	}
	return c.JSON(http.StatusOK, response)
}

// GetTemplate handles GET /api/v1/templates/:id
func (h *TemplateHandler) GetTemplate(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid template ID", nil)
	}

	template, err := h.templateService.GetTemplate(c.Request().Context(), ownerID, id)
	if err != nil {
		return respondError(c, err, "get template")
	}

	return c.JSON(http.StatusOK, toTemplateResponse(template))
}

// UpdateTemplate handles PUT /api/v1/templates/:id
func (h *TemplateHandler) UpdateTemplate(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid template ID", nil)
	}

	var req UpdateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	amount, err := parseOptionalAmount(req.Amount)
	if err != nil {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}
	patch := domain.TemplatePatch{
		Name:      req.Name,
		Amount:    amount,
		ChargeDay: req.ChargeDay,
		Active:    req.Active,
		Notes:     req.Notes,
	}
	if req.PaymentMethod != nil {
		method := domain.PaymentMethod(*req.PaymentMethod)
		patch.PaymentMethod = &method
	}

	template, err := h.templateService.UpdateTemplate(c.Request().Context(), ownerID, id, patch)
	if err != nil {
		return respondError(c, err, "update template")
	}

	return c.JSON(http.StatusOK, toTemplateResponse(template))
}

// ToggleTemplate handles PATCH /api/v1/templates/:id/toggle
func (h *TemplateHandler) ToggleTemplate(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid template ID", nil)
	}

	template, err := h.templateService.ToggleTemplate(c.Request().Context(), ownerID, id)
	if err != nil {
		return respondError(c, err, "toggle template")
	}

	return c.JSON(http.StatusOK, toTemplateResponse(template))
}

// DeleteTemplate handles DELETE /api/v1/templates/:id
func (h *TemplateHandler) DeleteTemplate(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid template ID", nil)
	}

	if err := h.templateService.DeleteTemplate(c.Request().Context(), ownerID, id); err != nil {
		return respondError(c, err, "delete template")
	}

	return c.NoContent(http.StatusNoContent)
}

// ApplyTemplates handles POST /api/v1/periods/:id/apply-templates
func (h *TemplateHandler) ApplyTemplates(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	periodID, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid period ID", nil)
	}

	result, err := h.periodService.ApplyTemplates(c.Request().Context(), ownerID, periodID)
	if err != nil {
		return respondError(c, err, "apply templates")
	}

	response := ApplyTemplatesResponse{
		PeriodID:       result.PeriodID.String(),
		Created:        make([]ExpenseResponse, len(result.Created)),
		AlreadyApplied: result.AlreadyApplied,
	}
	for i, e := range result.Created {
		response.Created[i] = toExpenseResponse(e)
	}
	return c.JSON(http.StatusOK, response)
}

func toTemplateResponse(t *domain.ExpenseTemplate) TemplateResponse {
	return TemplateResponse{
		ID:            t.ID.String(),
		CategoryID:    t.CategoryID.String(),
		Name:          t.Name,
		Amount:        t.Amount.StringFixed(2),
		ChargeDay:     t.ChargeDay,
		PaymentMethod: string(t.PaymentMethod),
		PeriodKind:    string(t.PaymentMethod.PeriodKind()),
		Active:        t.Active,
		Notes:         t.Notes,
		CreatedAt:     formatTime(t.CreatedAt),
		UpdatedAt:     formatTime(t.UpdatedAt),
	}
}
