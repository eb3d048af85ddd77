package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/telemetrytaco/telemetry-pipeline/internal/config"
	"github.com/telemetrytaco/telemetry-pipeline/internal/logging"
	"github.com/telemetrytaco/telemetry-pipeline/internal/seed"
	"github.com/telemetrytaco/telemetry-pipeline/internal/store"
)

// main seeds the store with realistic historical events for dashboards.
func main() {
	var (
		count = flag.Int("count", 2000, "number of events to generate")
		clean = flag.Bool("clean", false, "delete all existing events before seeding")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	if err := db.EnsureSchema(); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	ctx := context.Background()

	if *clean {
		if err := db.TruncateEvents(ctx); err != nil {
			logger.Fatal("truncate events", zap.Error(err))
		}
		logger.Info("deleted existing events")
	}

	events := seed.Generate(*count, time.Now())

	const batchSize = 500
	for i := 0; i < len(events); i += batchSize {
		end := i + batchSize
		if end > len(events) {
			end = len(events)
		}
		if err := db.InsertBatch(ctx, events[i:end]); err != nil {
			logger.Fatal("insert batch", zap.Error(err))
		}
	}

	logger.Info("seeding complete", zap.Int("count", len(events)))
}
