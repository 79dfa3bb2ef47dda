// Package metrics defines the Prometheus collectors of the daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	commands  *prometheus.CounterVec
	publishes *prometheus.CounterVec
	evictions *prometheus.CounterVec
	resolve   prometheus.Histogram
}

// New creates the collectors and registers them with runtime collectors on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homebase_commands_total",
				Help: "Commands executed, by kind and result",
			},
			[]string{"kind", "result"},
		),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homebase_publish_total",
				Help: "Light states sent to devices, by result",
			},
			[]string{"result"},
		),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homebase_overrides_evicted_total",
				Help: "Temporary overrides dropped after their TTL, by field",
			},
			[]string{"field"},
		),
		resolve: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "homebase_resolve_seconds",
				Help:    "Time spent resolving the targets of one reconcile pass",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
	}
	m.registry.MustRegister(
		m.commands, m.publishes, m.evictions, m.resolve,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CommandExecuted counts a command by kind and outcome.
func (m *Metrics) CommandExecuted(kind string, err error) {
	m.commands.WithLabelValues(kind, result(err)).Inc()
}

// Published counts a device write.
func (m *Metrics) Published(err error) {
	m.publishes.WithLabelValues(result(err)).Inc()
}

// Evicted counts dropped temporary overrides.
func (m *Metrics) Evicted(fields []string) {
	for _, f := range fields {
		m.evictions.WithLabelValues(f).Inc()
	}
}

// ObserveResolve records the duration of a resolve pass.
func (m *Metrics) ObserveResolve(d time.Duration) {
	m.resolve.Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
