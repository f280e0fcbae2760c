package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds request metrics
type HTTPMetrics struct {
	// RequestsTotal labels: method, route, status
	RequestsTotal *prometheus.CounterVec

	// RequestDuration labels: method, route
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and initializes HTTP metrics
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *HTTPMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.RequestsTotal, m.RequestDuration}
}
