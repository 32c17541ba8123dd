package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"facturation/internal/domain/documents/facture"
	"facturation/internal/domain/documents/facture/lines"
	"facturation/internal/infrastructure/cache"
	"facturation/internal/infrastructure/http/v1/handlers"
	"facturation/internal/infrastructure/http/v1/middleware"
	"facturation/internal/infrastructure/session"
	"facturation/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Sessions keeps open facture editors
	Sessions *session.Store

	// Catalog serves the current service/unit snapshot
	Catalog *cache.CatalogCache

	// Lines configures every editor opened through the API
	Lines lines.Config

	// Repository persists submitted factures (nil runs without storage)
	Repository facture.Repository

	// Pool is used by readiness checks (nil runs without storage)
	Pool *pgxpool.Pool

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency *cache.IdempotencyStore
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Sessions, cfg.Catalog)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	{
		if cfg.Idempotency != nil {
			v1.Use(middleware.Idempotency(cfg.Idempotency))
		}

		baseHandler := handlers.NewBaseHandler()

		catalogHandler := handlers.NewCatalogHandler(baseHandler, cfg.Catalog)
		v1.GET("/catalog", catalogHandler.Get)

		editorHandler := handlers.NewEditorHandler(baseHandler, handlers.EditorHandlerConfig{
			Sessions:   cfg.Sessions,
			Catalog:    cfg.Catalog,
			Lines:      cfg.Lines,
			Repository: cfg.Repository,
			Logger:     cfg.Logger,
		})
		RegisterEditorRoutes(v1.Group("/facture-editors"), editorHandler)
	}

	return router
}
