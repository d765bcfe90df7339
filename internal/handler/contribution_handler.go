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

// ContributionHandler handles contribution-related HTTP requests
type ContributionHandler struct {
	ledgerService *service.LedgerService
}

// NewContributionHandler creates a new ContributionHandler
func NewContributionHandler(ledgerService *service.LedgerService) *ContributionHandler {
	return &ContributionHandler{ledgerService: ledgerService}
}

// CreateContributionRequest represents the create contribution request body
type CreateContributionRequest struct {
	CategoryID string  `json:"categoryId"`
	Name       string  `json:"name"`
	Amount     string  `json:"amount"`
	IsFixed    bool    `json:"isFixed"`
	Notes      *string `json:"notes,omitempty"`
	RecordedAt *string `json:"recordedAt,omitempty"`
}

// ContributionResponse represents a contribution in API responses
type ContributionResponse struct {
	ID            string  `json:"id"`
	PeriodID      string  `json:"periodId"`
	CategoryID    string  `json:"categoryId"`
	Name          string  `json:"name"`
	Amount        string  `json:"amount"`
	IsFixed       bool    `json:"isFixed"`
	Notes         *string `json:"notes,omitempty"`
	SourceEntryID *string `json:"sourceEntryId,omitempty"`
	RecordedAt    string  `json:"recordedAt"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// CreateContribution handles POST /api/v1/periods/:id/contributions
func (h *ContributionHandler) CreateContribution(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	periodID, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid period ID", nil)
	}

	var req CreateContributionRequest
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
	recordedAt, ok := parseOptionalDate(req.RecordedAt)
	if !ok {
		fieldErrors = append(fieldErrors, ValidationError{Field: "recordedAt", Message: "Must be RFC 3339 or YYYY-MM-DD"})
	}
	if len(fieldErrors) > 0 {
		return NewValidationError(c, "Validation failed", fieldErrors)
	}

	contribution, err := h.ledgerService.CreateContribution(c.Request().Context(), ownerID, periodID, service.CreateContributionInput{
		CategoryID: categoryID,
		Name:       req.Name,
		Amount:     amount,
		IsFixed:    req.IsFixed,
		Notes:      req.Notes,
		RecordedAt: recordedAt,
	})
	if err != nil {
		return respondError(c, err, "create contribution")
	}

	return c.JSON(http.StatusCreated, toContributionResponse(contribution))
}

// ListContributions handles GET /api/v1/periods/:id/contributions?isFixed=&categoryId=
func (h *ContributionHandler) ListContributions(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	periodID, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid period ID", nil)
	}

	var filter domain.ContributionFilter
	if raw := c.QueryParam("isFixed"); raw != "" {
		isFixed, err := strconv.ParseBool(raw)
		if err != nil {
			return NewValidationError(c, "Validation failed", []ValidationError{
				{Field: "isFixed", Message: "Must be true or false"},
			})
		}
		filter.IsFixed = &isFixed
	}
	if raw := c.QueryParam("categoryId"); raw != "" {
		categoryID, err := uuid.Parse(raw)
		if err != nil {
			return NewValidationError(c, "Invalid category ID", nil)
		}
		filter.CategoryID = &categoryID
	}

	contributions, err := h.ledgerService.ListContributions(c.Request().Context(), ownerID, periodID, filter)
	if err != nil {
		return respondError(c, err, "list contributions")
	}

	response := make([]ContributionResponse, len(contributions))
	for i, ct := range contributions {
		response[i] = toContributionResponse(ct)
	}
	return c.JSON(http.StatusOK, response)
}

// GetContribution handles GET /api/v1/contributions/:id
func (h *ContributionHandler) GetContribution(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid contribution ID", nil)
	}

	contribution, err := h.ledgerService.GetContribution(c.Request().Context(), ownerID, id)
	if err != nil {
		return respondError(c, err, "get contribution")
	}

	return c.JSON(http.StatusOK, toContributionResponse(contribution))
}

// UpdateContribution handles PUT /api/v1/contributions/:id
func (h *ContributionHandler) UpdateContribution(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid contribution ID", nil)
	}

	patch, fieldErrors, bindErr := bindEntryPatch(c)
	if bindErr != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	if len(fieldErrors) > 0 {
		return NewValidationError(c, "Validation failed", fieldErrors)
	}

	contribution, err := h.ledgerService.UpdateContribution(c.Request().Context(), ownerID, id, patch)
	if err != nil {
		return respondError(c, err, "update contribution")
	}

	return c.JSON(http.StatusOK, toContributionResponse(contribution))
}

// DeleteContribution handles DELETE /api/v1/contributions/:id
func (h *ContributionHandler) DeleteContribution(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return NewValidationError(c, "Invalid contribution ID", nil)
	}

	if err := h.ledgerService.DeleteContribution(c.Request().Context(), ownerID, id); err != nil {
		return respondError(c, err, "delete contribution")
	}

	return c.NoContent(http.StatusNoContent)
}

func toContributionResponse(ct *domain.Contribution) ContributionResponse {
	return ContributionResponse{
		ID:            ct.ID.String(),
		PeriodID:      ct.PeriodID.String(),
		CategoryID:    ct.CategoryID.String(),
		Name:          ct.Name,
		Amount:        ct.Amount.StringFixed(2),
		IsFixed:       ct.IsFixed,
		Notes:         ct.Notes,
		SourceEntryID: uuidPtrString(ct.SourceEntryID),
		RecordedAt:    formatTime(ct.RecordedAt),
		CreatedAt:     formatTime(ct.CreatedAt),
		UpdatedAt:     formatTime(ct.UpdatedAt),
	}
}
