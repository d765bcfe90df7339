package handler

import (
	"github.com/dafibh/ledgerflow/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Handlers bundles the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Period       *PeriodHandler
	Expense      *ExpenseHandler
	Contribution *ContributionHandler
	Category     *CategoryHandler
	Template     *TemplateHandler
	WebSocket    *WebSocketHandler
}

// RegisterRoutes sets up all API routes. Every route is owner-scoped.
func RegisterRoutes(e *echo.Echo, h Handlers, ownerMiddleware echo.MiddlewareFunc, rateLimiter *middleware.RateLimiter) {
	api := e.Group("/api/v1")
	api.Use(ownerMiddleware)
	api.Use(middleware.RateLimitMiddleware(rateLimiter))

	// Period routes
	periods := api.Group("/periods")
	periods.GET("", h.Period.ListPeriods)
	periods.POST("", h.Period.CreatePeriod)
	periods.GET("/active", h.Period.GetActive)
	periods.POST("/repair", h.Period.RepairActive)
	periods.GET("/:id", h.Period.GetPeriod)
	periods.PUT("/:id", h.Period.UpdatePeriod)
	periods.DELETE("/:id", h.Period.DeletePeriod)
	periods.POST("/:id/close", h.Period.ClosePeriod)
	periods.GET("/:id/summary", h.Period.GetSummary)
	periods.POST("/:id/expenses", h.Expense.CreateExpense)
	periods.GET("/:id/expenses", h.Expense.ListExpenses)
	periods.POST("/:id/contributions", h.Contribution.CreateContribution)
	periods.GET("/:id/contributions", h.Contribution.ListContributions)
	periods.POST("/:id/apply-templates", h.Template.ApplyTemplates)

	// Expense routes
	expenses := api.Group("/expenses")
	expenses.GET("/:id", h.Expense.GetExpense)
	expenses.PUT("/:id", h.Expense.UpdateExpense)
	expenses.DELETE("/:id", h.Expense.DeleteExpense)

	// Contribution routes
	contributions := api.Group("/contributions")
	contributions.GET("/:id", h.Contribution.GetContribution)
	contributions.PUT("/:id", h.Contribution.UpdateContribution)
	contributions.DELETE("/:id", h.Contribution.DeleteContribution)

	// Expense template routes
	templates := api.Group("/templates")
	templates.GET("", h.Template.ListTemplates)
	templates.POST("", h.Template.CreateTemplate)
	templates.GET("/:id", h.Template.GetTemplate)
	templates.PUT("/:id", h.Template.UpdateTemplate)
	templates.PATCH("/:id/toggle", h.Template.ToggleTemplate)
	templates.DELETE("/:id", h.Template.DeleteTemplate)

	// Category routes
	api.GET("/categories", h.Category.GetCategories)

	// WebSocket (owner from ?owner_id= since browsers cannot set headers on upgrade)
	e.GET("/ws", h.WebSocket.HandleWS, ownerMiddleware)
}
