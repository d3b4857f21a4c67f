package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of oasrouter_dispatch_outcomes_total.
const (
	OutcomeOK                 = "ok"
	OutcomeUnauthorized       = "unauthorized"
	OutcomeBadRequest         = "bad_request"
	OutcomeNotAcceptable      = "not_acceptable"
	OutcomeInvalidResponse    = "invalid_response"
	OutcomeUnresolvedResponse = "unresolved_response"
	OutcomeError              = "error"
)

// Metrics records dispatch outcomes and handler latency. A nil *Metrics
// records nothing.
type Metrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oasrouter",
			Name:      "dispatch_outcomes_total",
			Help:      "Dispatched requests by operation and pipeline outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "oasrouter",
			Name:      "handler_duration_seconds",
			Help:      "Business handler latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.outcomes, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) outcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) handlerDuration(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}
