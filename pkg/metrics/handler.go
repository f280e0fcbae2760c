package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handler provides HTTP handlers for metrics endpoints
type Handler struct {
	collector *Collector
	checks    map[string]HealthCheck
}

// NewHandler creates a new metrics HTTP handler
func NewHandler(collector *Collector, checks map[string]HealthCheck) *Handler {
	return &Handler{
		collector: collector,
		checks:    checks,
	}
}

// RegisterRoutes registers /metrics and /health
func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/metrics", h.PrometheusMetrics)
	router.GET("/health", h.HealthCheck)
}

// PrometheusMetrics exposes metrics in Prometheus format
// GET /metrics
func (h *Handler) PrometheusMetrics(c *gin.Context) {
	h.collector.handler.ServeHTTP(c.Writer, c.Request)
}

// HealthCheck runs every registered probe
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	results := gin.H{}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	c.JSON(httpStatus, gin.H{
		"status": status,
		"checks": results,
	})
}
