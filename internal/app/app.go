package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/config"
	"github.com/temcen/gamerec/internal/database"
	"github.com/temcen/gamerec/internal/handlers"
	"github.com/temcen/gamerec/internal/middleware"
	"github.com/temcen/gamerec/internal/services"
	"github.com/temcen/gamerec/internal/validation"
)

type App struct {
	config     *config.Config
	logger     *logrus.Logger
	db         *database.Database
	registry   *prometheus.Registry
	services   *services.Services
	handlers   *handlers.Handlers
	validation *middleware.ValidationMiddleware
	router     *gin.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg)

	// Initialize database connections
	db, err := database.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app, err := newApp(cfg, logger, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

// newApp wires everything above the database layer. db may be nil, in which
// case rebuilds only accept snapshots in the request body.
func newApp(cfg *config.Config, logger *logrus.Logger, db *database.Database) (*App, error) {
	app := &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
	}

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize services
	svc, err := services.New(cfg, logger, db, app.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svc

	schemas, err := validation.NewEmbeddedSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load schemas: %w", err)
	}
	app.validation = middleware.NewValidationMiddleware(
		schemas, cfg.Recommendation.SimilarItems.MaxK, cfg.Recommendation.Expansion.MaxN,
	)

	// Initialize handlers
	app.handlers = handlers.New(cfg, logger, svc)

	// Setup router
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Start launches background work: health collectors, the startup build and
// the refresh consumer.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.services.Health.Start(ctx)

	if a.config.Recommendation.Build.OnStartup {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.buildOnStartup(ctx)
		}()
	}

	if a.services.SnapshotBus != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			err := a.services.SnapshotBus.ConsumeRefresh(ctx, a.services.Recommendations.HandleRefresh)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.WithError(err).Error("Snapshot refresh consumer stopped")
			}
		}()
	}
}

func (a *App) buildOnStartup(ctx context.Context) {
	stats, err := a.services.Recommendations.Rebuild(ctx, nil)
	if err != nil {
		a.logger.WithError(err).Error("Startup model build failed; queries return 503 until a rebuild succeeds")
		return
	}
	a.logger.WithFields(logrus.Fields{
		"version": stats.Version,
		"items":   stats.Items,
		"users":   stats.Users,
	}).Info("Startup model build completed")
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	if a.services.SnapshotBus != nil {
		if err := a.services.SnapshotBus.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Background workers did not stop before shutdown deadline")
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing database connections")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	// Health check endpoint (no auth required)
	router.GET("/health", a.handlers.Health.Check)

	// Prometheus metrics endpoint (no auth required)
	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	}

	queryLimit, adminLimit := a.rateLimiters()

	api := router.Group("/api/v1")
	{
		queries := api.Group("", queryLimit...)
		queries.GET("/items/:itemId/similar", a.validation.ValidateQueryParams(), a.handlers.Recommendation.GetSimilarItems)
		queries.GET("/users/:userId/recommendations", a.validation.ValidateQueryParams(), a.handlers.Recommendation.GetUserRecommendations)

		// Admin routes
		admin := api.Group("/admin/models")
		admin.Use(middleware.Auth(a.services.Auth, a.logger))
		admin.Use(adminLimit...)
		{
			admin.POST("/rebuild", a.validation.ValidateSnapshot(), a.handlers.Admin.Rebuild)
			admin.POST("/refresh", a.validation.ValidateRefreshRequest(), a.handlers.Admin.Refresh)
			admin.GET("/status", a.handlers.Admin.Status)
		}
	}

	a.router = router
}

// rateLimiters returns the query and admin rate limit middleware, or none when
// rate limiting is disabled.
func (a *App) rateLimiters() (query, admin []gin.HandlerFunc) {
	if a.services.RateLimit == nil {
		return nil, nil
	}
	query = []gin.HandlerFunc{middleware.RateLimit(a.services.RateLimit, services.ScopeQuery, a.logger)}
	admin = []gin.HandlerFunc{middleware.RateLimit(a.services.RateLimit, services.ScopeAdmin, a.logger)}
	return query, admin
}
