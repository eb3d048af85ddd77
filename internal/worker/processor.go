// Package worker consumes queued tasks and commits them durably, exactly
// once per event id. Deduplication is delegated entirely to the store's
// conditional insert; workers share no in-memory state and any number of
// them may process the same event id concurrently.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telemetrytaco/telemetry-pipeline/internal/models"
	"github.com/telemetrytaco/telemetry-pipeline/internal/queue"
)

// ErrMalformedTask marks a task that can never be persisted. It is routed to
// the dead-letter destination immediately, without retries.
var ErrMalformedTask = errors.New("malformed task")

// EventStore is the narrow durable-store contract the processor needs.
// InsertIfAbsent must be atomic: insert the event only if no row with the
// same id exists, and report which case occurred.
type EventStore interface {
	InsertIfAbsent(ctx context.Context, ev models.Event) (bool, error)
}

// Processor runs the per-task state machine:
//
//	Dequeued → conditional insert → {inserted | duplicate}: Ack
//	                              → transient failure: Nack (redelivery)
//	                              → malformed: Dead
type Processor struct {
	broker queue.Broker
	store  EventStore
	log    *zap.Logger
	now    func() time.Time

	// maxElapsed caps in-process retrying of one insert before the task is
	// handed back to the broker via Nack.
	maxElapsed time.Duration
}

// NewProcessor creates a processor over the given broker and store.
func NewProcessor(broker queue.Broker, store EventStore, log *zap.Logger) *Processor {
	return &Processor{
		broker:     broker,
		store:      store,
		log:        log,
		now:        time.Now,
		maxElapsed: 2 * time.Second,
	}
}

// Run consumes tasks until ctx is cancelled. It returns nil on cancellation
// and the dequeue error otherwise.
func (p *Processor) Run(ctx context.Context) error {
	for {
		d, err := p.broker.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if err := p.process(ctx, d); err != nil {
			p.log.Error("settling delivery failed", zap.Error(err))
		}
	}
}

func (p *Processor) process(ctx context.Context, d *queue.Delivery) error {
	// Settlement must not be lost to a shutdown signal that arrives while
	// the insert is in flight.
	settleCtx := context.WithoutCancel(ctx)

	ev := d.Task.Event

	if err := validate(ev); err != nil {
		p.log.Warn("dead-lettering malformed task",
			zap.String("event_id", ev.ID.String()),
			zap.Error(err))
		return d.Dead(settleCtx)
	}

	// Server-assigned timestamp, set at commit time.
	ev.ReceivedAt = p.now().UTC()

	var inserted bool
	op := func() error {
		var err error
		inserted, err = p.store.InsertIfAbsent(ctx, ev)
		return err
	}

	// Short in-process backoff smooths store blips; anything longer goes
	// back to the broker so the task does not pin this worker.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = p.maxElapsed

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		p.log.Warn("persist failed, redelivering",
			zap.String("event_id", ev.ID.String()),
			zap.Int("attempts", d.Task.Attempts),
			zap.Error(err))
		return d.Nack(settleCtx)
	}

	if !inserted {
		// Duplicate delivery: idempotent success, ack like any other.
		p.log.Debug("duplicate event", zap.String("event_id", ev.ID.String()))
	}
	return d.Ack(settleCtx)
}

func validate(ev models.Event) error {
	if ev.ID == uuid.Nil || ev.EventName == "" {
		return ErrMalformedTask
	}
	return nil
}

// Pool runs size independent processors over one broker. Workers never block
// on each other; the pool is a free horizontal-scaling parameter.
type Pool struct {
	size    int
	newProc func() *Processor
}

// NewPool creates a pool of size processors sharing broker and store.
func NewPool(size int, broker queue.Broker, store EventStore, log *zap.Logger) *Pool {
	return &Pool{
		size: size,
		newProc: func() *Processor {
			return NewProcessor(broker, store, log)
		},
	}
}

// Run blocks until ctx is cancelled and every worker has drained.
func (pl *Pool) Run(ctx context.Context) error {
	errs := make(chan error, pl.size)
	for i := 0; i < pl.size; i++ {
		proc := pl.newProc()
		go func() {
			errs <- proc.Run(ctx)
		}()
	}

	var firstErr error
	for i := 0; i < pl.size; i++ {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
