// Package metrics exposes Prometheus metrics for change requests and chain
// validations.
//
// Metrics live on a private registry so that several instances (tests, or
// a CLI embedding the server) never collide on the global one. Handler
// serves that registry at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HendryAvila/specchain/internal/chain"
	"github.com/HendryAvila/specchain/internal/changes"
)

const namespace = "specchain"

// Metrics holds every collector. All methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	// TransitionsTotal counts CR transitions. Labels: from, to.
	TransitionsTotal *prometheus.CounterVec
	// ValidationsTotal counts chain validations. Labels: result (clean, issues).
	ValidationsTotal *prometheus.CounterVec
	// ChainIssues is the issue count of the latest validation, split by kind.
	// Labels: kind (orphaned, missing, stale).
	ChainIssues *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "change_requests",
			Name:      "transitions_total",
			Help:      "Change request transitions by source and target status.",
		}, []string{"from", "to"}),
		ValidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "validations_total",
			Help:      "Chain validations by result.",
		}, []string{"result"}),
		ChainIssues: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "issues",
			Help:      "Issues found by the latest chain validation, by kind.",
		}, []string{"kind"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// OnTransition counts one transition.
func (m *Metrics) OnTransition(cr *changes.ChangeRequest, from changes.Status, _ string) {
	m.TransitionsTotal.WithLabelValues(string(from), string(cr.Status)).Inc()
}

// OnChainValidated counts the run and records its issue counts.
func (m *Metrics) OnChainValidated(_ string, report *chain.Report) {
	result := "clean"
	if report.Issues() > 0 {
		result = "issues"
	}
	m.ValidationsTotal.WithLabelValues(result).Inc()
	m.ChainIssues.WithLabelValues("orphaned").Set(float64(len(report.OrphanedIDs)))
	m.ChainIssues.WithLabelValues("missing").Set(float64(len(report.MissingIDs)))
	m.ChainIssues.WithLabelValues("stale").Set(float64(len(report.StalenessWarnings)))
}
