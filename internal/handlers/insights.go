package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/telemetrytaco/telemetry-pipeline/internal/ingest"
	"github.com/telemetrytaco/telemetry-pipeline/internal/insights"
)

// RegisterInsightRoutes registers the serving-path endpoints.
//
// GET /insights?lookback_minutes=60&granularity_seconds=60
// - Returns a gapless, ascending series of buckets; empty intervals report 0.
//
// GET /events?limit=100
// - Returns the most recent committed events, newest first.
func RegisterInsightRoutes(r gin.IRoutes, svc *ingest.Service) {
	r.GET("/insights", func(c *gin.Context) {
		lookback, err := intQuery(c, "lookback_minutes", 60)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lookback_minutes must be an integer"})
			return
		}
		granularity, err := intQuery(c, "granularity_seconds", 60)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "granularity_seconds must be an integer"})
			return
		}

		buckets, err := svc.Insights(c.Request.Context(), lookback, granularity)
		if err != nil {
			if errors.Is(err, insights.ErrInvalidWindow) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, buckets)
	})

	r.GET("/events", func(c *gin.Context) {
		limit, err := intQuery(c, "limit", 100)
		if err != nil || limit <= 0 || limit > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be in [1,1000]"})
			return
		}

		events, err := svc.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, events)
	})
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
