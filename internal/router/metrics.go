package router

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for dispatch. A nil *Metrics records
// nothing.
//
// Metrics must be created once per registerer and shared by every Router
// built on it, including routers rebuilt on configuration reload.
type Metrics struct {
	dispatchTotal      *prometheus.CounterVec
	dispatchDuration   prometheus.Histogram
	dispatchErrors     prometheus.Counter
	registrationsTotal *prometheus.CounterVec
	staticServed       prometheus.Counter
	traversalRejected  prometheus.Counter
}

// NewMetrics creates dispatch metrics registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		dispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "dispatch_total",
				Help:      "Total number of dispatched requests by outcome",
			},
			[]string{"outcome"},
		),
		dispatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent walking filters and routes",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		dispatchErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "dispatch_errors_total",
				Help:      "Total number of dispatches aborted by a handler or I/O error",
			},
		),
		registrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "registrations_total",
				Help:      "Total number of registered filters, routes and static roots",
			},
			[]string{"kind"},
		),
		staticServed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "static_served_total",
				Help:      "Total number of static resources served",
			},
		),
		traversalRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "static_traversal_rejected_total",
				Help:      "Total number of static candidates rejected for escaping their root",
			},
		),
	}
}

func (m *Metrics) recordDispatch(outcome Match, duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(outcome.String()).Inc()
	m.dispatchDuration.Observe(duration.Seconds())
}

func (m *Metrics) recordError() {
	if m == nil {
		return
	}
	m.dispatchErrors.Inc()
}

func (m *Metrics) recordRegistration(kind string) {
	if m == nil {
		return
	}
	m.registrationsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordStaticServed() {
	if m == nil {
		return
	}
	m.staticServed.Inc()
}

func (m *Metrics) recordTraversalRejected() {
	if m == nil {
		return
	}
	m.traversalRejected.Inc()
}
