// Package metric provides Prometheus metrics for the snapshot engine.
//
// It exposes counters and histograms for snapshot lifecycle events,
// restore and prune activity, scheduler runs, and upstream provider
// latency. Metrics are served at /metrics in Prometheus format.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all engine metrics.
type Registry struct {
	registry *prometheus.Registry

	// Snapshot lifecycle
	SnapshotsCreated *prometheus.CounterVec
	SnapshotsDeleted *prometheus.CounterVec
	SnapshotBytes    prometheus.Histogram

	// Restore activity
	RestoreRuns          *prometheus.CounterVec
	RestoreFieldsApplied prometheus.Counter
	RestoreFieldsFailed  prometheus.Counter

	// Retention
	PruneDeletions prometheus.Counter
	PruneRuns      prometheus.Counter

	// Scheduler
	SchedulerRuns *prometheus.CounterVec

	// Upstream provider
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	// Store
	VerifyFailures prometheus.Counter
}

// NewRegistry creates and registers all engine metrics on a fresh
// Prometheus registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())

	r := &Registry{
		registry: reg,

		SnapshotsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfsm",
			Subsystem: "snapshot",
			Name:      "created_total",
			Help:      "Snapshots created, by category.",
		}, []string{"category"}),

		SnapshotsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfsm",
			Subsystem: "snapshot",
			Name:      "deleted_total",
			Help:      "Snapshots deleted, by cause (manual, retention).",
		}, []string{"cause"}),

		SnapshotBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cfsm",
			Subsystem: "snapshot",
			Name:      "size_bytes",
			Help:      "Encoded snapshot record size.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}),

		RestoreRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfsm",
			Subsystem: "restore",
			Name:      "runs_total",
			Help:      "Restore runs, by outcome (success, partial, failed, dry_run).",
		}, []string{"outcome"}),

		RestoreFieldsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsm",
			Subsystem: "restore",
			Name:      "fields_applied_total",
			Help:      "Individual settings successfully written during restores.",
		}),

		RestoreFieldsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsm",
			Subsystem: "restore",
			Name:      "fields_failed_total",
			Help:      "Individual settings that failed to apply during restores.",
		}),

		PruneDeletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsm",
			Subsystem: "retention",
			Name:      "deletions_total",
			Help:      "Snapshots removed by retention pruning.",
		}),

		PruneRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsm",
			Subsystem: "retention",
			Name:      "runs_total",
			Help:      "Retention prune passes executed.",
		}),

		SchedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfsm",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduled job executions, by job and outcome.",
		}, []string{"job", "outcome"}),

		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfsm",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Upstream API requests, by operation and outcome.",
		}, []string{"operation", "outcome"}),

		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cfsm",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Upstream API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		VerifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cfsm",
			Subsystem: "store",
			Name:      "verify_failures_total",
			Help:      "Snapshot integrity verification failures.",
		}),
	}

	reg.MustRegister(
		r.SnapshotsCreated,
		r.SnapshotsDeleted,
		r.SnapshotBytes,
		r.RestoreRuns,
		r.RestoreFieldsApplied,
		r.RestoreFieldsFailed,
		r.PruneDeletions,
		r.PruneRuns,
		r.SchedulerRuns,
		r.ProviderRequests,
		r.ProviderLatency,
		r.VerifyFailures,
	)

	return r
}

// Handler returns the HTTP handler serving this registry at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
