// Package insights answers "how many events per interval over the last N
// minutes". The engine is read-only over committed events and holds no state
// between calls; each call is consistent with the store at call time.
package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telemetrytaco/telemetry-pipeline/internal/models"
)

// ErrInvalidWindow reports a non-positive lookback or granularity.
var ErrInvalidWindow = errors.New("lookback and granularity must be positive")

// RangeStore is the read contract over the durable event store. QueryRange
// need not return ordered rows; the engine groups and orders itself.
type RangeStore interface {
	QueryRange(ctx context.Context, from, to time.Time) ([]models.Event, error)
	Recent(ctx context.Context, limit int) ([]models.Event, error)
}

// Engine computes time-bucketed counts on demand.
type Engine struct {
	store RangeStore
	now   func() time.Time
}

// New creates an engine over the given store.
func New(store RangeStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Insights returns exactly ceil(lookbackMinutes*60/granularitySeconds)
// buckets in ascending time order. The last bucket is the current, possibly
// partial, interval. Intervals with no events report count 0 so consumers
// can plot a gapless series without post-processing.
func (e *Engine) Insights(ctx context.Context, lookbackMinutes, granularitySeconds int) ([]models.InsightBucket, error) {
	if lookbackMinutes <= 0 || granularitySeconds <= 0 {
		return nil, ErrInvalidWindow
	}

	gran := int64(granularitySeconds)
	lookback := int64(lookbackMinutes) * 60
	n := (lookback + gran - 1) / gran // ceil

	now := e.now().UTC()
	lastBucket := now.Unix() / gran * gran
	firstBucket := lastBucket - (n-1)*gran

	from := time.Unix(firstBucket, 0).UTC()
	events, err := e.store.QueryRange(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("insights range query: %w", err)
	}

	buckets := make([]models.InsightBucket, n)
	for i := int64(0); i < n; i++ {
		buckets[i] = models.InsightBucket{
			BucketStart: time.Unix(firstBucket+i*gran, 0).UTC(),
		}
	}

	for _, ev := range events {
		idx := (ev.ReceivedAt.Unix() - firstBucket) / gran
		if idx < 0 || idx >= n {
			continue
		}
		buckets[idx].Count++
	}

	return buckets, nil
}

// Recent returns the newest events first, up to limit.
func (e *Engine) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return e.store.Recent(ctx, limit)
}
