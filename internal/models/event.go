package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is the unit of telemetry. The producer-assigned ID doubles as the
// deduplication key; ReceivedAt is assigned by the worker at the moment the
// event is durably committed, not at enqueue time.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	DistinctID string                 `json:"distinct_id"`
	EventName  string                 `json:"event_name"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	ReceivedAt time.Time              `json:"received_at"`
}

// QueuedTask is the broker payload: the full event plus delivery bookkeeping.
// Attempts counts failed deliveries so far; the broker routes the task to the
// dead-letter destination once it reaches the configured ceiling.
type QueuedTask struct {
	Event      Event     `json:"event"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts"`
}

// InsightBucket is one fixed-width interval of the aggregated time series.
// Buckets are derived on query and never persisted.
type InsightBucket struct {
	BucketStart time.Time `json:"bucket_start"`
	Count       int64     `json:"count"`
}

// CaptureRequest is the POST /capture payload.
// event_id is optional; best practice is to pass Idempotency-Key header for retries.
type CaptureRequest struct {
	EventID    string                 `json:"event_id,omitempty"`
	DistinctID string                 `json:"distinct_id"`
	EventName  string                 `json:"event_name"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// CaptureResponse is returned by POST /capture once the event is queued.
type CaptureResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}
