package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/telemetrytaco/telemetry-pipeline/internal/ingest"
)

// RegisterAdminRoutes registers operator endpoints.
//
// POST /admin/ratelimits/flush clears all rate-limit counters, used after
// limit-configuration changes. Idempotent.
// GET /admin/deadletters?limit=100 lists terminally failed tasks.
func RegisterAdminRoutes(r gin.IRoutes, svc *ingest.Service) {
	r.POST("/admin/ratelimits/flush", func(c *gin.Context) {
		if err := svc.FlushRateLimits(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "flush failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "flushed"})
	})

	r.GET("/admin/deadletters", func(c *gin.Context) {
		limit, err := intQuery(c, "limit", 100)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}

		tasks, err := svc.DeadLetters(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "dead letter query failed"})
			return
		}
		c.JSON(http.StatusOK, tasks)
	})
}
