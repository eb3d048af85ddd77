package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/telemetrytaco/telemetry-pipeline/internal/config"
	"github.com/telemetrytaco/telemetry-pipeline/internal/logging"
	"github.com/telemetrytaco/telemetry-pipeline/internal/queue"
	"github.com/telemetrytaco/telemetry-pipeline/internal/store"
	"github.com/telemetrytaco/telemetry-pipeline/internal/worker"
)

// main runs the idempotent event processor pool until SIGINT/SIGTERM.
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

	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	if err := db.EnsureSchema(); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

	// Each worker process gets its own processing list; tasks stranded by a
	// crash stay visible there for operator requeue.
	consumerID := uuid.NewString()
	broker := queue.NewRedisBroker(rdb, cfg.QueueName, consumerID, cfg.MaxAttempts, logger)

	pool := worker.NewPool(cfg.WorkerCount, broker, db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker pool started",
		zap.Int("workers", cfg.WorkerCount),
		zap.String("queue", cfg.QueueName),
		zap.String("consumer_id", consumerID))

	if err := pool.Run(ctx); err != nil {
		logger.Fatal("worker pool stopped", zap.Error(err))
	}
	logger.Info("worker pool stopped")
}
