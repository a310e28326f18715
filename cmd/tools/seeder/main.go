package main

import (
	"context"
	"flag"
	"time"

	"github.com/noah-isme/novahub/internal/app"
	"github.com/noah-isme/novahub/internal/config"
	"github.com/noah-isme/novahub/internal/obs"
	"github.com/noah-isme/novahub/internal/repo"
)

func main() {
	skipMigrate := flag.Bool("skip-migrate", false, "do not apply schema migrations before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()

	if cfg.StoreDriver != config.DriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("seeder needs STORE_DRIVER=postgres; the memory store seeds itself")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if !*skipMigrate {
		if err := repo.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	pool, err := app.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	now := time.Now().UTC()
	if err := repo.Seed(ctx, &repo.Postgres{DB: pool}, now); err != nil {
		logger.Fatal().Err(err).Msg("seed store")
	}
	logger.Info().
		Int("products", len(repo.SeedProducts(now))).
		Int("customers", len(repo.SeedCustomers(now))).
		Int("discounts", len(repo.SeedRules())).
		Msg("seeding completed")
}
