// Package metrics exposes Prometheus instrumentation for the API and worker.
// All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moneylens"

type Metrics struct {
	registry *prometheus.Registry

	httpDuration  *prometheus.HistogramVec
	statsDuration prometheus.Histogram
	statsCache    *prometheus.CounterVec
	expenseWrites *prometheus.CounterVec
	events        *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route", "status"},
		),
		statsDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "compute_duration_seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		statsCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stats",
				Name:      "cache_lookups_total",
			},
			[]string{"result"},
		),
		expenseWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "expenses",
				Name:      "writes_total",
			},
			[]string{"operation"},
		),
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "processed_total",
			},
			[]string{"direction", "success"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveStats(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.statsDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) StatsCacheHit() {
	if m == nil {
		return
	}
	m.statsCache.WithLabelValues("hit").Inc()
}

func (m *Metrics) StatsCacheMiss() {
	if m == nil {
		return
	}
	m.statsCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) ExpenseWrite(operation string) {
	if m == nil {
		return
	}
	m.expenseWrites.WithLabelValues(operation).Inc()
}

// EventPublished counts an outgoing expense event.
func (m *Metrics) EventPublished(ok bool) {
	if m == nil {
		return
	}
	m.events.WithLabelValues("published", strconv.FormatBool(ok)).Inc()
}

// EventConsumed counts an event handled by the worker.
func (m *Metrics) EventConsumed(ok bool) {
	if m == nil {
		return
	}
	m.events.WithLabelValues("consumed", strconv.FormatBool(ok)).Inc()
}
