// Package metrics counts solver, cache and source activity for one
// invocation and can export it in the Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns a private registry so several invocations in one process
// (tests) never collide on global registration.
type Metrics struct {
	Registry *prometheus.Registry

	Decisions   prometheus.Counter
	Derivations prometheus.Counter
	Conflicts   prometheus.Counter
	CacheHits   prometheus.Counter
	CacheFetch  prometheus.Counter
	Requests    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Decisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pub_solver_decisions_total",
			Help: "Versions selected by the solver.",
		}),
		Derivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pub_solver_derivations_total",
			Help: "Assignments derived by unit propagation.",
		}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pub_solver_conflicts_total",
			Help: "Conflicts resolved by the solver.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pub_cache_hits_total",
			Help: "Cache entries found complete.",
		}),
		CacheFetch: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pub_cache_fetches_total",
			Help: "Cache entries materialized.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pub_source_requests_total",
			Help: "Uncached source queries by source kind and operation.",
		}, []string{"source", "operation"}),
	}
	m.Registry.MustRegister(m.Decisions, m.Derivations, m.Conflicts, m.CacheHits, m.CacheFetch, m.Requests)
	return m
}

// The helpers below accept a nil receiver so callers can run without metrics.

func (m *Metrics) Decision() {
	if m != nil {
		m.Decisions.Inc()
	}
}

func (m *Metrics) Derivation() {
	if m != nil {
		m.Derivations.Inc()
	}
}

func (m *Metrics) Conflict() {
	if m != nil {
		m.Conflicts.Inc()
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) CacheFetched() {
	if m != nil {
		m.CacheFetch.Inc()
	}
}

func (m *Metrics) Request(source string, operation string) {
	if m != nil {
		m.Requests.WithLabelValues(source, operation).Inc()
	}
}

// WriteFile writes all metrics to path in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
