package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/telemetrytaco/telemetry-pipeline/internal/auth"
	"github.com/telemetrytaco/telemetry-pipeline/internal/config"
	"github.com/telemetrytaco/telemetry-pipeline/internal/handlers"
	"github.com/telemetrytaco/telemetry-pipeline/internal/ingest"
)

// Pinger is the dependency probe behind /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires public endpoints and the pipeline APIs.
// Public: /health, /ready
// Identity-scoped: /capture, /insights, /events, /admin/*
func NewRouter(cfg config.Config, svc *ingest.Service, db Pinger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Identity group resolves the rate-limit key via X-API-Key or client IP.
	idGroup := r.Group("/")
	idGroup.Use(auth.IdentityMiddleware(cfg.APIKeys))

	handlers.RegisterCaptureRoutes(idGroup, svc)
	handlers.RegisterInsightRoutes(idGroup, svc)
	handlers.RegisterAdminRoutes(idGroup, svc)

	return r
}
