package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is returned by callers of Admit that treat a rejection as an
// error; the limiter itself reports rejection through Decision.Allowed.
var ErrRateLimited = errors.New("rate limited")

// CounterStore is the external atomic counter service backing the limiter.
// IncrBy must be a single atomic increment; it is the only mutual exclusion
// the limiter relies on. Counters expire via ttl so window rollover needs no
// cleanup pass.
type CounterStore interface {
	IncrBy(ctx context.Context, key string, windowID int64, cost int64, ttl time.Duration) (int64, error)
	FlushAll(ctx context.Context) error
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter implements fixed-window admission control. State lives entirely in
// the CounterStore, so any number of processes can share one limit.
type Limiter struct {
	store  CounterStore
	limit  int64
	window time.Duration
	now    func() time.Time
}

// New creates a limiter admitting at most limit calls per key per window.
func New(store CounterStore, limit int64, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Admit atomically counts the call against the current window for key and
// decides admission. The increment and the comparison use one store round
// trip; two concurrent admits can never both observe the pre-increment value.
func (l *Limiter) Admit(ctx context.Context, key string, cost int64) (Decision, error) {
	if cost <= 0 {
		cost = 1
	}

	now := l.now()
	windowSec := int64(l.window / time.Second)
	windowID := now.Unix() / windowSec

	// TTL of two windows keeps the counter alive for the whole window with
	// slack for clock skew; after that it is garbage.
	newCount, err := l.store.IncrBy(ctx, key, windowID, cost, 2*l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}

	if newCount > l.limit {
		windowEnd := time.Unix((windowID+1)*windowSec, 0)
		retry := windowEnd.Sub(now)
		if retry <= 0 {
			retry = time.Second
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
	}

	return Decision{Allowed: true, Remaining: l.limit - newCount}, nil
}

// Flush clears all counters for all keys. Operator action after limit
// configuration changes; idempotent when no counters exist.
func (l *Limiter) Flush(ctx context.Context) error {
	return l.store.FlushAll(ctx)
}
