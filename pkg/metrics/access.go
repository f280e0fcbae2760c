package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "house_security"

// AccessMetrics holds the authorization and authentication metrics.
type AccessMetrics struct {
	// DecisionsTotal counts capability table decisions.
	// Labels: role, resource, action, result={allowed,denied}
	DecisionsTotal *prometheus.CounterVec

	// LoginsTotal counts login attempts.
	// Labels: result={success,invalid_credentials,rate_limited,error}
	LoginsTotal *prometheus.CounterVec
}

// NewAccessMetrics creates and initializes access metrics
func NewAccessMetrics() *AccessMetrics {
	return &AccessMetrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "decisions_total",
				Help:      "Capability table decisions by role, resource, action and result",
			},
			[]string{"role", "resource", "action", "result"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "logins_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"},
		),
	}
}

func (m *AccessMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.DecisionsTotal, m.LoginsTotal}
}
