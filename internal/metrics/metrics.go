// Package metrics exposes the engine's observable surface (spec §5's
// concurrency model) as Prometheus collectors: how long each per-symbol
// worker takes, how many candidates the seeker evaluated, and how many
// persistence commits landed. Grounded on the teacher pack's
// poorman-SynapseStrike metrics package, which registers a custom
// prometheus.Registry and wraps every update behind named helper funcs
// rather than exposing raw collectors to callers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom registry for this engine's metrics, separate from
// the default global one so a host process embedding this package doesn't
// collide with its own collectors.
var Registry = prometheus.NewRegistry()

var (
	// SymbolWorkerDuration tracks wall-clock time spent running the
	// per-symbol seeker pipeline (spec §5 "per-symbol worker duration").
	SymbolWorkerDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kiss_signal",
			Subsystem: "worker",
			Name:      "symbol_duration_seconds",
			Help:      "Duration of one symbol's seeker pipeline in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	// CandidatesTested counts every rule-stack candidate the seeker
	// attempted, accept or reject (spec §4.F "every candidate tested must
	// be logged").
	CandidatesTested = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiss_signal",
			Subsystem: "seeker",
			Name:      "candidates_tested_total",
			Help:      "Total number of rule-stack candidates evaluated",
		},
		[]string{"symbol", "accepted"},
	)

	// PersistenceCommits counts batched writes to the strategies/positions
	// tables (spec §5 "writes are batched at the end of the run and
	// committed in one transaction").
	PersistenceCommits = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kiss_signal",
			Subsystem: "persistence",
			Name:      "commits_total",
			Help:      "Total number of persistence commit transactions",
		},
		[]string{"table", "outcome"},
	)

	// SymbolsFailed counts per-symbol worker failures that were discarded
	// rather than aborting the whole run (spec §5 "Completed symbols'
	// results are preserved").
	SymbolsFailed = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "kiss_signal",
			Subsystem: "worker",
			Name:      "symbols_failed_total",
			Help:      "Total number of symbols whose worker discarded partial results",
		},
	)
)

// Init registers the standard process/Go runtime collectors alongside the
// engine-specific ones above, so a single registry serves both.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

// RecordCandidate increments CandidatesTested for one seeker decision.
func RecordCandidate(symbol string, accepted bool) {
	label := "false"
	if accepted {
		label = "true"
	}
	CandidatesTested.WithLabelValues(symbol, label).Inc()
}

// RecordCommit increments PersistenceCommits for one batched write.
func RecordCommit(table string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PersistenceCommits.WithLabelValues(table, outcome).Inc()
}
