package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/telemetrytaco/telemetry-pipeline/internal/auth"
	"github.com/telemetrytaco/telemetry-pipeline/internal/ingest"
	"github.com/telemetrytaco/telemetry-pipeline/internal/models"
)

// RegisterCaptureRoutes registers the ingestion-path endpoint.
//
// POST /capture
// - Admission is decided against the caller's fixed-window budget first;
//   rejected calls are never enqueued.
// - Returns 202 as soon as the event is on the queue. The durable write
//   happens in the worker; producers never wait on the store.
func RegisterCaptureRoutes(r gin.IRoutes, svc *ingest.Service) {
	r.POST("/capture", func(c *gin.Context) {
		var req models.CaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		if req.DistinctID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "distinct_id required"})
			return
		}
		if req.EventName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_name required"})
			return
		}

		// Dedup key precedence:
		// 1) Idempotency-Key header (recommended for retries)
		// 2) event_id in payload
		// 3) generated UUID (fallback; cannot dedupe client retries)
		rawID := c.GetHeader("Idempotency-Key")
		if rawID == "" {
			rawID = req.EventID
		}
		var eventID uuid.UUID
		if rawID == "" {
			eventID = uuid.New()
		} else {
			var err error
			if eventID, err = uuid.Parse(rawID); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "event_id must be a UUID"})
				return
			}
		}

		dec, err := svc.Admit(c.Request.Context(), auth.CallerID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "admission check failed"})
			return
		}
		if !dec.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate limited",
				"retry_after_seconds": int(dec.RetryAfter.Seconds()) + 1,
			})
			return
		}

		ev := models.Event{
			ID:         eventID,
			DistinctID: req.DistinctID,
			EventName:  req.EventName,
			Properties: req.Properties,
		}
		if err := svc.Submit(c.Request.Context(), ev); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue failed"})
			return
		}

		c.JSON(http.StatusAccepted, models.CaptureResponse{
			Status:  "ok",
			EventID: eventID.String(),
		})
	})
}
