// Package ingest is the public surface of the pipeline: admit, submit,
// query. The HTTP layer stays a thin translation over this type.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telemetrytaco/telemetry-pipeline/internal/insights"
	"github.com/telemetrytaco/telemetry-pipeline/internal/models"
	"github.com/telemetrytaco/telemetry-pipeline/internal/queue"
	"github.com/telemetrytaco/telemetry-pipeline/internal/ratelimit"
)

// ErrInvalidEvent reports a submit call missing required fields.
var ErrInvalidEvent = errors.New("event id and event_name required")

// Service ties the rate limiter, the queue gateway and the aggregation
// engine together behind the contract the request layer consumes.
type Service struct {
	limiter *ratelimit.Limiter
	broker  queue.Broker
	engine  *insights.Engine
	log     *zap.Logger
	now     func() time.Time
}

// New wires the pipeline facade.
func New(limiter *ratelimit.Limiter, broker queue.Broker, engine *insights.Engine, log *zap.Logger) *Service {
	return &Service{
		limiter: limiter,
		broker:  broker,
		engine:  engine,
		log:     log,
		now:     time.Now,
	}
}

// Admit checks the caller against its fixed-window budget. Admission never
// waits on the durable store.
func (s *Service) Admit(ctx context.Context, key string) (ratelimit.Decision, error) {
	return s.limiter.Admit(ctx, key, 1)
}

// Submit enqueues an admitted event and returns without touching the durable
// store. Rejected callers must never reach this method; a rejected call
// enqueues nothing by design.
func (s *Service) Submit(ctx context.Context, ev models.Event) error {
	if ev.ID == uuid.Nil || ev.EventName == "" {
		return ErrInvalidEvent
	}

	task := models.QueuedTask{
		Event:      ev,
		EnqueuedAt: s.now().UTC(),
	}
	if err := s.broker.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Insights returns zero-filled buckets over the lookback window.
func (s *Service) Insights(ctx context.Context, lookbackMinutes, granularitySeconds int) ([]models.InsightBucket, error) {
	return s.engine.Insights(ctx, lookbackMinutes, granularitySeconds)
}

// Recent returns the newest committed events.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	return s.engine.Recent(ctx, limit)
}

// FlushRateLimits clears every rate-limit counter. Operator action after
// limit-configuration changes; idempotent.
func (s *Service) FlushRateLimits(ctx context.Context) error {
	s.log.Info("flushing rate limit counters")
	return s.limiter.Flush(ctx)
}

// DeadLetters exposes terminally failed tasks for inspection.
func (s *Service) DeadLetters(ctx context.Context, limit int) ([]models.QueuedTask, error) {
	return s.broker.DeadLetters(ctx, limit)
}
