// Package main is the entry point for the facturation API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"facturation/internal/config"
	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/documents/facture"
	"facturation/internal/infrastructure/cache"
	v1 "facturation/internal/infrastructure/http/v1"
	"facturation/internal/infrastructure/session"
	"facturation/internal/infrastructure/storage/postgres"
	"facturation/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting facturation server")

	linesCfg, err := cfg.Editor.Lines()
	if err != nil {
		log.Fatalw("invalid editor configuration", "error", err)
	}

	// --- Storage (optional) ---
	var (
		pool   *postgres.Pool
		source catalogs.Source = catalogs.StaticSource{}
		repo   facture.Repository
	)
	if cfg.Postgres.DSN != "" {
		poolCfg := postgres.DefaultPoolConfig(cfg.Postgres.DSN)
		if cfg.Postgres.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Postgres.MaxConns
		}
		pool, err = postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Info("database connection established")

		txm := postgres.NewTxManager(pool)
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, txm); err != nil {
				log.Fatalw("failed to migrate database", "error", err)
			}
		}
		source = postgres.NewCatalogLoader(txm)
		repo = postgres.NewFactureRepo(txm, cfg.Numbering.Prefix)
	} else if cfg.Catalog.SeedFile != "" {
		seed, err := config.LoadSeedFile(cfg.Catalog.SeedFile)
		if err != nil {
			log.Fatalw("failed to load catalog seed", "error", err, "path", cfg.Catalog.SeedFile)
		}
		source = seed
		log.Infow("running without database", "catalog_seed", cfg.Catalog.SeedFile)
	} else {
		log.Warn("running without database or catalog seed: the catalog is empty")
	}

	// --- Catalog cache ---
	var listenPool *pgxpool.Pool
	if pool != nil && cfg.Postgres.ListenCatalog {
		listenPool = pool.Pool
	}
	catalogCache := cache.NewCatalogCache(source, listenPool)
	if err := catalogCache.Start(ctx); err != nil {
		log.Fatalw("failed to load catalog", "error", err)
	}
	defer catalogCache.Stop()

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Logger:      log,
		Sessions:    session.NewStore(cfg.Session.TTL, log),
		Catalog:     catalogCache,
		Lines:       linesCfg,
		Repository:  repo,
		Idempotency: cache.NewIdempotencyStore(cfg.Session.IdempotencyTTL),
	}
	if pool != nil {
		routerCfg.Pool = pool.Pool
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "address", cfg.Server.Address, "persistence", pool != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	if pool != nil {
		postgres.LogPoolStats(logger.WithLogger(shutdownCtx, log), pool)
	}

	log.Info("server stopped")
}
