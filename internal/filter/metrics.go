package filter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for filters. A nil *Metrics records
// nothing.
type Metrics struct {
	rejectionsTotal  *prometheus.CounterVec
	evaluationErrors *prometheus.CounterVec
	storeFallbacks   prometheus.Counter
}

// NewMetrics creates filter metrics registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		rejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "filter",
				Name:      "rejections_total",
				Help:      "Total number of requests intercepted by a filter",
			},
			[]string{"filter", "reason"},
		),
		evaluationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "filter",
				Name:      "rule_evaluation_errors_total",
				Help:      "Total number of request rules that failed to evaluate",
			},
			[]string{"rule"},
		),
		storeFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "filter",
				Name:      "rate_limit_store_fallbacks_total",
				Help:      "Total number of rate limit decisions made locally because the shared store failed",
			},
		),
	}
}

func (m *Metrics) recordRejection(filter, reason string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(filter, reason).Inc()
}

func (m *Metrics) recordEvaluationError(rule string) {
	if m == nil {
		return
	}
	m.evaluationErrors.WithLabelValues(rule).Inc()
}

func (m *Metrics) recordStoreFallback() {
	if m == nil {
		return
	}
	m.storeFallbacks.Inc()
}
