package handler

import (
	"net/http"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/middleware"
	"github.com/dafibh/ledgerflow/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CategoryHandler exposes the owner's system categories
type CategoryHandler struct {
	categoryService *service.CategoryService
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	HasGoal     bool   `json:"hasGoal"`
	Description string `json:"description"`
}

// GetCategories handles GET /api/v1/categories, provisioning missing defaults first
func (h *CategoryHandler) GetCategories(c echo.Context) error {
	ownerID := middleware.GetOwnerID(c)
	if ownerID == uuid.Nil {
		return NewUnauthorizedError(c, "Owner required")
	}

	categories, err := h.categoryService.EnsureDefaults(c.Request().Context(), ownerID)
	if err != nil {
		return respondError(c, err, "get categories")
	}

	response := make([]CategoryResponse, len(categories))
	for i, cat := range categories {
		response[i] = toCategoryResponse(cat)
	}
	return c.JSON(http.StatusOK, response)
}

func toCategoryResponse(cat *domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:          cat.ID.String(),
		Slug:        string(cat.Slug),
		Name:        cat.Name,
		HasGoal:     cat.HasGoal,
		Description: cat.Description,
	}
}
