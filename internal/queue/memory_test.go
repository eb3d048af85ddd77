package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/telemetrytaco/telemetry-pipeline/internal/models"
)

func newTask() models.QueuedTask {
	return models.QueuedTask{
		Event: models.Event{
			ID:         uuid.New(),
			DistinctID: "user-1",
			EventName:  "page_view",
		},
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestMemoryBroker_EnqueueDequeue(t *testing.T) {
	b := NewMemoryBroker(3)
	task := newTask()

	require.NoError(t, b.Enqueue(context.Background(), task))

	d, err := b.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, task.Event.ID, d.Task.Event.ID)
	require.Equal(t, 0, d.Task.Attempts)

	require.NoError(t, d.Ack(context.Background()))
	require.Equal(t, 0, b.Len())
}

func TestMemoryBroker_DequeueBlocksUntilCancel(t *testing.T) {
	b := NewMemoryBroker(3)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBroker_NackRedeliversWithIncrementedAttempts(t *testing.T) {
	b := NewMemoryBroker(3)
	require.NoError(t, b.Enqueue(context.Background(), newTask()))

	d, err := b.Dequeue(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.Nack(context.Background()))

	d, err = b.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, d.Task.Attempts)
}

func TestMemoryBroker_DeadLetterAfterMaxAttempts(t *testing.T) {
	b := NewMemoryBroker(3)
	task := newTask()
	require.NoError(t, b.Enqueue(context.Background(), task))

	// Three failed deliveries with max=3: the third nack buries the task.
	for i := 0; i < 3; i++ {
		d, err := b.Dequeue(context.Background())
		require.NoError(t, err, "delivery %d", i+1)
		require.Equal(t, i, d.Task.Attempts)
		require.NoError(t, d.Nack(context.Background()))
	}

	// Never redelivered a fourth time.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	dead, err := b.DeadLetters(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, task.Event.ID, dead[0].Event.ID)
	require.Equal(t, 3, dead[0].Attempts)
}

func TestMemoryBroker_DeadRoutesImmediately(t *testing.T) {
	b := NewMemoryBroker(3)
	require.NoError(t, b.Enqueue(context.Background(), newTask()))

	d, err := b.Dequeue(context.Background())
	require.NoError(t, err)
	require.NoError(t, d.Dead(context.Background()))

	dead, err := b.DeadLetters(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, 0, b.Len())
}

func TestMemoryBroker_DeadLettersNewestFirst(t *testing.T) {
	b := NewMemoryBroker(1)
	first := newTask()
	second := newTask()

	for _, task := range []models.QueuedTask{first, second} {
		require.NoError(t, b.Enqueue(context.Background(), task))
		d, err := b.Dequeue(context.Background())
		require.NoError(t, err)
		require.NoError(t, d.Nack(context.Background()))
	}

	dead, err := b.DeadLetters(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, second.Event.ID, dead[0].Event.ID)
}
