// Package main provides a CLI tool for importing a catalog seed file into the
// database and for continuing the facture numbering of a previous system.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"facturation/internal/config"
	"facturation/internal/infrastructure/storage/postgres"
	"facturation/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	seedPath := flag.String("seed", "", "catalog seed file (defaults to catalog.seed_file)")
	migrate := flag.Bool("migrate", false, "apply the schema before importing")
	lastNumber := flag.String("last-number", "", "last facture number issued this year by a previous system, e.g. FAC-2026-00042")
	flag.Parse()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	path := *seedPath
	if path == "" {
		path = cfg.Catalog.SeedFile
	}
	if path == "" && *lastNumber == "" {
		log.Fatal("nothing to do: pass -seed, set catalog.seed_file or pass -last-number")
	}
	if cfg.Postgres.DSN == "" {
		log.Fatal("postgres.dsn is required (FACTURATION_POSTGRES_DSN)")
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Postgres.DSN))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)
	if *migrate || cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, txm); err != nil {
			log.Fatalw("failed to migrate database", "error", err)
		}
	}

	if path != "" {
		importCatalog(ctx, log, txm, path)
	}

	if *lastNumber != "" {
		repo := postgres.NewFactureRepo(txm, cfg.Numbering.Prefix)
		if err := repo.ContinueNumbering(ctx, *lastNumber, time.Now()); err != nil {
			log.Fatalw("failed to continue numbering", "error", err, "last_number", *lastNumber)
		}
		log.Infow("numbering continued", "last_number", *lastNumber)
	}
}

func importCatalog(ctx context.Context, log *logger.Logger, txm *postgres.TxManager, path string) {
	seed, err := config.LoadSeedFile(path)
	if err != nil {
		log.Fatalw("failed to read seed file", "error", err, "path", path)
	}
	catalog, err := seed.Load(ctx)
	if err != nil {
		log.Fatalw("invalid catalog seed", "error", err, "path", path)
	}

	if err := postgres.ImportCatalog(ctx, txm, catalog); err != nil {
		log.Fatalw("failed to import catalog", "error", err)
	}

	log.Infow("catalog imported",
		"path", path,
		"services", len(catalog.Services()),
		"units", len(catalog.Units()))
}
