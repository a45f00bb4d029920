package main

import (
	"context"
	"fmt"

	"epifit/adapters/dataset"
	"epifit/adapters/postgres"
	"epifit/adapters/rng"
	"epifit/app"
	"epifit/domain/epi"
	"epifit/internal/config"
	"epifit/internal/testkit"
	"epifit/ports"
	"epifit/ui"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// initLedger connects the persistent fit ledger when DATABASE_URL is set
// and falls back to an in-memory ledger otherwise. The returned closer is
// a no-op for the in-memory case.
func initLedger(ctx context.Context, cfg *config.Config, log *logrus.Logger) (ports.LedgerPort, func(), error) {
	if cfg.Database.URL == "" {
		log.Info("No DATABASE_URL configured, keeping the fit ledger in memory")
		return testkit.NewInMemoryLedgerAdapter(), func() {}, nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := postgres.NewLedgerRepository(db)
	if err := repo.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ledger schema bootstrap failed: %w", err)
	}

	log.Info("Postgres fit ledger ready")
	return repo, func() { db.Close() }, nil
}

// loadDataset reads the configured case data file, or builds a synthetic
// endemic series when no file is configured.
func loadDataset(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*epi.Dataset, error) {
	if cfg.Dataset.Path != "" {
		reader, err := dataset.NewReader(cfg.Dataset.SeasonPeriod, cfg.Dataset.SeasonPhase, log)
		if err != nil {
			return nil, err
		}
		log.Infof("Loading dataset from %s", cfg.Dataset.Path)
		return reader.Load(ctx, cfg.Dataset.Path)
	}

	log.Info("No data file configured, using synthetic endemic data")
	return testkit.SyntheticDataset(cfg.Dataset.Name, 520), nil
}

// runPipelines executes the configured fits. A failed fit is logged rather
// than fatal: the manifest and any partial artifacts are already in the
// ledger, and the server should still come up so they can be inspected.
func runPipelines(ctx context.Context, pipeline *app.Pipeline, cfg *config.Config, ds *epi.Dataset, log *logrus.Logger) {
	seed := cfg.Simulation.Seed

	if cfg.Dataset.Pipeline == "tsir" || cfg.Dataset.Pipeline == "both" {
		result, err := pipeline.RunTSIR(ctx, app.TSIRRequest{Dataset: ds, Seed: seed})
		if err != nil {
			log.WithError(err).Error("TSIR fit failed")
		} else {
			log.Infof("TSIR fit complete, report at /report/%s", result.Manifest.RunID)
		}
	}

	if cfg.Dataset.Pipeline == "chain-binomial" || cfg.Dataset.Pipeline == "both" {
		result, err := pipeline.RunChainBinomial(ctx, app.ChainBinomialRequest{Dataset: ds, Seed: seed})
		if err != nil {
			log.WithError(err).Error("Chain-binomial fit failed")
		} else {
			log.Infof("Chain-binomial fit complete, report at /report/%s", result.Manifest.RunID)
		}
	}
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	gin.SetMode(cfg.Server.GinMode)

	ctx := context.Background()

	ledger, closeLedger, err := initLedger(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize ledger: %v", err)
	}
	defer closeLedger()

	ds, err := loadDataset(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	log.Infof("Dataset %s loaded: %d observations", ds.Name, ds.Cases.Len())

	pipeline := app.NewPipeline(ledger, rng.New(), cfg, log)
	runPipelines(ctx, pipeline, cfg, ds, log)

	server := ui.NewServer(ledger, log)
	log.Infof("Starting epifit server on port %s", cfg.Server.Port)
	log.Fatal(server.Start(":" + cfg.Server.Port))
}
