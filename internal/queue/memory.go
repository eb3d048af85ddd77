package queue

import (
	"context"
	"sync"

	"github.com/telemetrytaco/telemetry-pipeline/internal/models"
)

const memoryBufferSize = 1024

// MemoryBroker is a channel-backed Broker with the same settlement semantics
// as the Redis broker. Used by tests and single-process development runs; it
// does not survive restarts.
type MemoryBroker struct {
	tasks       chan models.QueuedTask
	maxAttempts int

	mu   sync.Mutex
	dead []models.QueuedTask
}

// NewMemoryBroker creates a broker that dead-letters tasks after maxAttempts
// failed deliveries.
func NewMemoryBroker(maxAttempts int) *MemoryBroker {
	return &MemoryBroker{
		tasks:       make(chan models.QueuedTask, memoryBufferSize),
		maxAttempts: maxAttempts,
	}
}

func (b *MemoryBroker) Enqueue(ctx context.Context, task models.QueuedTask) error {
	select {
	case b.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (b *MemoryBroker) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case task := <-b.tasks:
		return &Delivery{
			Task: task,
			ack:  func(context.Context) error { return nil },
			nack: func(ctx context.Context) error { return b.settleNack(ctx, task) },
			dead: func(context.Context) error { b.bury(task); return nil },
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *MemoryBroker) settleNack(ctx context.Context, task models.QueuedTask) error {
	task.Attempts++
	if task.Attempts >= b.maxAttempts {
		b.bury(task)
		return nil
	}
	select {
	case b.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) bury(task models.QueuedTask) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead = append(b.dead, task)
}

func (b *MemoryBroker) DeadLetters(ctx context.Context, limit int) ([]models.QueuedTask, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || limit > len(b.dead) {
		limit = len(b.dead)
	}
	out := make([]models.QueuedTask, 0, limit)
	// Newest first.
	for i := len(b.dead) - 1; i >= len(b.dead)-limit; i-- {
		out = append(out, b.dead[i])
	}
	return out, nil
}

// Len reports how many tasks are waiting. Test helper.
func (b *MemoryBroker) Len() int {
	return len(b.tasks)
}
