package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/ledgerflow/internal/config"
	"github.com/dafibh/ledgerflow/internal/handler"
	"github.com/dafibh/ledgerflow/internal/middleware"
	"github.com/dafibh/ledgerflow/internal/repository/postgres"
	"github.com/dafibh/ledgerflow/internal/service"
	"github.com/dafibh/ledgerflow/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		log.Info().Msg("Migrations applied")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	periodRepo := postgres.NewPeriodRepository(pool)
	expenseRepo := postgres.NewExpenseRepository(pool)
	contributionRepo := postgres.NewContributionRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)
	templateRepo := postgres.NewTemplateRepository(pool)

	// Push events go to every websocket client of the owner
	hub := websocket.NewHub()

	// Initialize services
	aggregator := service.NewLedgerAggregator(expenseRepo, contributionRepo)
	rolloverService := service.NewRolloverService(expenseRepo, contributionRepo)
	templateService := service.NewTemplateService(templateRepo, expenseRepo, categoryRepo, hub)
	periodService := service.NewPeriodService(periodRepo, rolloverService, aggregator, hub)
	periodService.SetTemplateService(templateService)
	categoryService := service.NewCategoryService(categoryRepo)
	ledgerService := service.NewLedgerService(periodRepo, expenseRepo, contributionRepo, categoryRepo, aggregator, hub)
	liquidityService := service.NewLiquidityService(periodRepo, aggregator, categoryService)

	// Roll expired periods in the background
	var rolloverWorker *service.RolloverWorker
	if cfg.RolloverSweepInterval > 0 {
		rolloverWorker = service.NewRolloverWorker(periodService, periodRepo, log.Logger, service.RolloverWorkerConfig{
			Interval: cfg.RolloverSweepInterval,
		})
		rolloverWorker.Start(context.Background())
	}

	// Initialize handlers
	handlers := handler.Handlers{
		Period:       handler.NewPeriodHandler(periodService, liquidityService),
		Template:     handler.NewTemplateHandler(templateService, periodService),
		Expense:      handler.NewExpenseHandler(ledgerService),
		Contribution: handler.NewContributionHandler(ledgerService),
		Category:     handler.NewCategoryHandler(categoryService),
		WebSocket:    handler.NewWebSocketHandler(hub, cfg.CORSOrigins),
	}

	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestID())

	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, cfg.OwnerHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	e.Use(zerologMiddleware())
	e.Use(echomiddleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	handler.RegisterRoutes(e, handlers, middleware.OwnerID(cfg.OwnerHeader), rateLimiter)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if rolloverWorker != nil {
		rolloverWorker.Stop()
	}
	hub.CloseAll()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
