package main

import (
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/telemetrytaco/telemetry-pipeline/internal/config"
	"github.com/telemetrytaco/telemetry-pipeline/internal/httpserver"
	"github.com/telemetrytaco/telemetry-pipeline/internal/ingest"
	"github.com/telemetrytaco/telemetry-pipeline/internal/insights"
	"github.com/telemetrytaco/telemetry-pipeline/internal/logging"
	"github.com/telemetrytaco/telemetry-pipeline/internal/queue"
	"github.com/telemetrytaco/telemetry-pipeline/internal/ratelimit"
	"github.com/telemetrytaco/telemetry-pipeline/internal/store"
)

// main boots the API: config → logger → DB → Redis → pipeline → HTTP server.
// The API admits and enqueues; the durable write lives in cmd/worker.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// Durable storage backs the read path (insights, recent events).
	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	// Ensure required tables/indexes exist so `docker compose up --build` is enough.
	if err := db.EnsureSchema(); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	// Redis carries both the rate-limit counters and the task queue.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

	limiter := ratelimit.New(
		ratelimit.NewRedisCounterStore(rdb),
		cfg.RateLimit,
		time.Duration(cfg.RateLimitWindowSec)*time.Second,
	)
	broker := queue.NewRedisBroker(rdb, cfg.QueueName, "api", cfg.MaxAttempts, logger)
	engine := insights.New(db)
	svc := ingest.New(limiter, broker, engine, logger)

	router := httpserver.NewRouter(cfg, svc, db)

	logger.Info("api server started", zap.String("addr", cfg.Addr))
	if err := router.Run(cfg.Addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
