package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryCounterStore is a process-local CounterStore for tests and
// single-process development runs. Production deployments with more than one
// API process must use the Redis store, or each process counts alone.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: map[string]*memoryCounter{},
		now:      time.Now,
	}
}

func (s *MemoryCounterStore) IncrBy(ctx context.Context, key string, windowID int64, cost int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	mapKey := fmt.Sprintf("%s:%d", key, windowID)

	c, ok := s.counters[mapKey]
	if !ok || now.After(c.expiresAt) {
		c = &memoryCounter{expiresAt: now.Add(ttl)}
		s.counters[mapKey] = c
	}
	c.count += cost
	return c.count, nil
}

func (s *MemoryCounterStore) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = map[string]*memoryCounter{}
	return nil
}
