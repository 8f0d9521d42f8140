// Package metrics groups the Prometheus instruments banter exposes on
// /metrics. A nil *Metrics is valid and records nothing, so components can
// take one optionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "banter"

// Turn outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeBackendError = "backend_error"
)

// Persona lookup sources.
const (
	SourceCache   = "cache"
	SourceStore   = "store"
	SourceDefault = "default"
)

// Store labels.
const (
	StoreCache    = "cache"
	StoreProfiles = "profiles"
)

// Metrics groups all Prometheus instruments used by the bot.
type Metrics struct {
	registry *prometheus.Registry

	Turns          *prometheus.CounterVec
	BackendLatency prometheus.Histogram
	PersonaLookups *prometheus.CounterVec
	StoreErrors    *prometheus.CounterVec
	Registrations  *prometheus.CounterVec
	EventsDropped  prometheus.Counter
}

// New creates the instruments on a fresh registry, so several instances can
// coexist in one process (tests, multiple orchestrators).
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		BackendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_latency_ms",
			Help:      "Completion backend latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		}),
		PersonaLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persona_lookups_total",
			Help:      "Persona reads by the tier that answered them.",
		}, []string{"source"}),
		StoreErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Swallowed or surfaced store failures by store and operation.",
		}, []string{"store", "op"}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration requests by result.",
		}, []string{"result"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Exchange events dropped because the publish queue was full.",
		}),
	}
}

// Registry returns the registry the instruments live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveTurn(outcome string, backend time.Duration) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
	m.BackendLatency.Observe(float64(backend.Milliseconds()))
}

func (m *Metrics) PersonaLookup(source string) {
	if m == nil {
		return
	}
	m.PersonaLookups.WithLabelValues(source).Inc()
}

func (m *Metrics) StoreError(store, op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(store, op).Inc()
}

func (m *Metrics) Registration(created bool) {
	if m == nil {
		return
	}
	result := "existing"
	if created {
		result = "created"
	}
	m.Registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}
