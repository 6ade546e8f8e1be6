// Package metrics exposes Prometheus collectors for the mapper and the
// transport.
//
// Collectors are registered on the Registerer passed to New, so tests and
// embedding applications can keep them off the global registry. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gizmo"

// Flush outcomes.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// Metrics holds the gizmo collectors.
type Metrics struct {
	flushes           *prometheus.CounterVec
	fragments         *prometheus.CounterVec
	flushDuration     prometheus.Histogram
	hydrationMismatch prometheus.Counter
	requests          *prometheus.CounterVec
	dialRetries       prometheus.Counter
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mapper",
				Name:      "flushes_total",
				Help:      "Total number of unit-of-work flushes by outcome",
			},
			[]string{"status"},
		),
		fragments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mapper",
				Name:      "fragments_total",
				Help:      "Total number of compiled script fragments by operation",
			},
			[]string{"op"},
		),
		flushDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "mapper",
				Name:      "flush_duration_seconds",
				Help:      "Round-trip time of a flush, including hydration",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		hydrationMismatch: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mapper",
				Name:      "hydration_mismatch_total",
				Help:      "Reply variables that matched no queued entity",
			},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "requests_total",
				Help:      "Total number of script requests by final status",
			},
			[]string{"status"},
		),
		dialRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "dial_retries_total",
				Help:      "Failed connection attempts that were retried",
			},
		),
	}
}

// Flush records one flush outcome and its duration.
func (m *Metrics) Flush(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(status).Inc()
	m.flushDuration.Observe(d.Seconds())
}

// Fragment records one compiled fragment.
func (m *Metrics) Fragment(op string) {
	if m == nil {
		return
	}
	m.fragments.WithLabelValues(op).Inc()
}

// HydrationMismatch records a reply variable with no matching entity.
func (m *Metrics) HydrationMismatch() {
	if m == nil {
		return
	}
	m.hydrationMismatch.Inc()
}

// Request records one transport request outcome.
func (m *Metrics) Request(status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status).Inc()
}

// DialRetry records a failed dial that will be retried.
func (m *Metrics) DialRetry() {
	if m == nil {
		return
	}
	m.dialRetries.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
