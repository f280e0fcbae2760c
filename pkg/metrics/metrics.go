// Package metrics provides Prometheus metrics collection and exposition.
//
// It exposes request metrics, capability decisions, login outcomes and the
// token cache counters on a dedicated registry.
//
//	collector := metrics.NewCollector(metrics.CollectorConfig{Cache: c})
//	router.Use(collector.GinMiddleware())
//	metrics.NewHandler(collector, checks).RegisterRoutes(router)
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MaxymChyncha/house-security-system/pkg/cache"
)

// Collector manages Prometheus metrics collection
type Collector struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpMetrics   *HTTPMetrics
	accessMetrics *AccessMetrics
}

// CollectorConfig holds configuration for metrics collector
type CollectorConfig struct {
	Cache                cache.Cache // optional
	EnableGoMetrics      bool
	EnableProcessMetrics bool
}

// NewCollector creates a collector with its own registry
func NewCollector(config CollectorConfig) *Collector {
	registry := prometheus.NewRegistry()

	if config.EnableGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
	}
	if config.EnableProcessMetrics {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	c := &Collector{
		registry:      registry,
		httpMetrics:   NewHTTPMetrics(),
		accessMetrics: NewAccessMetrics(),
	}

	registry.MustRegister(c.httpMetrics.collectors()...)
	registry.MustRegister(c.accessMetrics.collectors()...)
	if config.Cache != nil {
		registry.MustRegister(cacheCollectors(config.Cache)...)
	}

	c.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})

	return c
}

func cacheCollectors(c cache.Cache) []prometheus.Collector {
	counter := func(name, help string, value func(cache.CacheStats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token_cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(c.Stats())) })
	}

	return []prometheus.Collector{
		counter("hits_total", "Token cache hits", func(s cache.CacheStats) uint64 { return s.Hits }),
		counter("misses_total", "Token cache misses", func(s cache.CacheStats) uint64 { return s.Misses }),
		counter("errors_total", "Token cache errors", func(s cache.CacheStats) uint64 { return s.Errors }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "token_cache",
			Name:      "circuit_open",
			Help:      "1 when the cache circuit breaker is open",
		}, func() float64 {
			if c.Stats().CircuitOpen {
				return 1
			}
			return 0
		}),
	}
}

// Registry returns the Prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveDecision records a capability decision.
func (c *Collector) ObserveDecision(role, resource, action string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	c.accessMetrics.DecisionsTotal.WithLabelValues(role, resource, action, result).Inc()
}

// ObserveLogin records a login outcome.
func (c *Collector) ObserveLogin(result string) {
	c.accessMetrics.LoginsTotal.WithLabelValues(result).Inc()
}

// GinMiddleware records request count and latency per route template.
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}

		c.httpMetrics.RequestsTotal.WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpMetrics.RequestDuration.WithLabelValues(ctx.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
