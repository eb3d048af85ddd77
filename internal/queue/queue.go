// Package queue is the hand-off contract between the ingestion entry point
// and the worker pool. Delivery is at-least-once: a task may reach more than
// one worker invocation, and the dedup layer downstream must tolerate that.
// No ordering is guaranteed across event ids.
package queue

import (
	"context"
	"errors"

	"github.com/telemetrytaco/telemetry-pipeline/internal/models"
)

// ErrQueueFull is returned by Enqueue when the broker cannot accept the task
// without blocking the producer.
var ErrQueueFull = errors.New("queue full")

// Broker decouples event receipt from durable storage. Enqueue must not
// perform the durable write itself; dequeued tasks stay in flight until the
// worker settles them through the Delivery.
type Broker interface {
	Enqueue(ctx context.Context, task models.QueuedTask) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (*Delivery, error)
	// DeadLetters returns up to limit terminally failed tasks, newest first.
	DeadLetters(ctx context.Context, limit int) ([]models.QueuedTask, error)
}

// Delivery is one in-flight task hand-off. Exactly one of Ack, Nack or Dead
// must be called. Ack only after the event is durably committed. Nack
// increments the attempt counter and redelivers, or routes to dead-letter
// once the broker's attempt ceiling is reached. Dead routes to dead-letter
// immediately, for failures retrying cannot fix.
type Delivery struct {
	Task models.QueuedTask

	ack  func(ctx context.Context) error
	nack func(ctx context.Context) error
	dead func(ctx context.Context) error
}

func (d *Delivery) Ack(ctx context.Context) error  { return d.ack(ctx) }
func (d *Delivery) Nack(ctx context.Context) error { return d.nack(ctx) }
func (d *Delivery) Dead(ctx context.Context) error { return d.dead(ctx) }
