package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telemetrytaco/telemetry-pipeline/internal/models"
	"github.com/telemetrytaco/telemetry-pipeline/internal/queue"
)

// fakeStore implements EventStore with the same atomicity guarantee the real
// store provides: check and insert under one lock.
type fakeStore struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]models.Event
	failures int // fail this many calls before succeeding; -1 fails forever
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[uuid.UUID]models.Event{}}
}

func (s *fakeStore) InsertIfAbsent(ctx context.Context, ev models.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		return false, errors.New("store unavailable")
	}
	if _, ok := s.rows[ev.ID]; ok {
		return false, nil
	}
	s.rows[ev.ID] = ev
	return true, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func newTestProcessor(b queue.Broker, s EventStore) *Processor {
	p := NewProcessor(b, s, zap.NewNop())
	p.maxElapsed = 20 * time.Millisecond
	return p
}

func task(id uuid.UUID, name string) models.QueuedTask {
	return models.QueuedTask{
		Event: models.Event{
			ID:         id,
			DistinctID: "user-1",
			EventName:  name,
		},
		EnqueuedAt: time.Now().UTC(),
	}
}

// drain runs the processor until the broker has no pending tasks left.
func drain(t *testing.T, p *Processor, b *queue.MemoryBroker) {
	t.Helper()
	for b.Len() > 0 {
		d, err := b.Dequeue(context.Background())
		require.NoError(t, err)
		require.NoError(t, p.process(context.Background(), d))
	}
}

func TestProcess_InsertsAndAcks(t *testing.T) {
	b := queue.NewMemoryBroker(3)
	s := newFakeStore()
	p := newTestProcessor(b, s)

	require.NoError(t, b.Enqueue(context.Background(), task(uuid.New(), "page_view")))
	drain(t, p, b)

	require.Equal(t, 1, s.count())
	require.Equal(t, 0, b.Len())
}

func TestProcess_SetsReceivedAtAtCommitTime(t *testing.T) {
	b := queue.NewMemoryBroker(3)
	s := newFakeStore()
	p := newTestProcessor(b, s)

	commit := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return commit }

	id := uuid.New()
	queued := task(id, "page_view")
	queued.EnqueuedAt = commit.Add(-time.Hour)
	require.NoError(t, b.Enqueue(context.Background(), queued))
	drain(t, p, b)

	require.Equal(t, commit, s.rows[id].ReceivedAt)
}

func TestProcess_DuplicateDeliveriesStoreOneRowAllAcked(t *testing.T) {
	b := queue.NewMemoryBroker(3)
	s := newFakeStore()
	p := newTestProcessor(b, s)

	id := uuid.New()
	// Five deliveries of the same event id, simulating producer retries.
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Enqueue(context.Background(), task(id, "page_view")))
	}
	drain(t, p, b)

	require.Equal(t, 1, s.count())
	require.Equal(t, 0, b.Len())

	dead, err := b.DeadLetters(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, dead, "duplicates are success, never dead-lettered")
}

func TestProcess_ConcurrentDuplicatesStoreOneRow(t *testing.T) {
	b := queue.NewMemoryBroker(3)
	s := newFakeStore()

	id := uuid.New()
	const deliveries = 20
	for i := 0; i < deliveries; i++ {
		require.NoError(t, b.Enqueue(context.Background(), task(id, "page_view")))
	}

	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		d, err := b.Dequeue(context.Background())
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			p := newTestProcessor(b, s)
			_ = p.process(context.Background(), d)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, s.count())
}

func TestProcess_TransientFailureNacksThenSucceeds(t *testing.T) {
	b := queue.NewMemoryBroker(3)
	s := newFakeStore()
	s.failures = -1 // fail for the whole first delivery
	p := newTestProcessor(b, s)

	require.NoError(t, b.Enqueue(context.Background(), task(uuid.New(), "page_view")))

	d, err := b.Dequeue(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.process(context.Background(), d))
	require.Equal(t, 0, s.count())

	// Store recovers; the redelivered task commits.
	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
	drain(t, p, b)

	require.Equal(t, 1, s.count())
}

func TestProcess_ExhaustedRetriesDeadLettered(t *testing.T) {
	const maxAttempts = 3
	b := queue.NewMemoryBroker(maxAttempts)
	s := newFakeStore()
	s.failures = -1
	p := newTestProcessor(b, s)

	id := uuid.New()
	require.NoError(t, b.Enqueue(context.Background(), task(id, "page_view")))

	deliveries := 0
	for b.Len() > 0 {
		d, err := b.Dequeue(context.Background())
		require.NoError(t, err)
		deliveries++
		require.NoError(t, p.process(context.Background(), d))
	}

	require.Equal(t, maxAttempts, deliveries, "never redelivered past the ceiling")
	require.Equal(t, 0, s.count())

	dead, err := b.DeadLetters(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, id, dead[0].Event.ID)
}

func TestProcess_MalformedTaskDeadLetteredImmediately(t *testing.T) {
	b := queue.NewMemoryBroker(3)
	s := newFakeStore()
	p := newTestProcessor(b, s)

	// Missing event name can never be persisted; retrying cannot fix it.
	bad := models.QueuedTask{Event: models.Event{ID: uuid.New()}}
	require.NoError(t, b.Enqueue(context.Background(), bad))
	drain(t, p, b)

	require.Equal(t, 0, s.count())
	dead, err := b.DeadLetters(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, 0, dead[0].Attempts, "no retries before dead-lettering")
}

func TestPool_DrainsQueueAcrossWorkers(t *testing.T) {
	b := queue.NewMemoryBroker(3)
	s := newFakeStore()

	const events = 40
	for i := 0; i < events; i++ {
		require.NoError(t, b.Enqueue(context.Background(), task(uuid.New(), "page_view")))
	}

	pool := NewPool(4, b, s, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.count() == events
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
