// Package lbmetrics holds lbcore's in-process instrumentation.
//
// These are plain Prometheus collectors kept in a private registry, not a
// telemetry pipeline: lbcore never pushes them anywhere and starts no HTTP
// listener. A host application that wants a /metrics endpoint can serve
// Registry() from its own handler; lbcore only counts and times its own
// operations.
package lbmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var registry = prometheus.NewRegistry()

var (
	SyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lbcore_sync_total",
			Help: "Total number of sync attempts by outcome",
		},
		[]string{"outcome"}, // ok, error, already_syncing
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lbcore_sync_duration_seconds",
			Help:    "Duration of a full sync() call",
			Buckets: prometheus.DefBuckets,
		},
	)

	WorkUnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lbcore_work_units_total",
			Help: "Total number of work units processed by kind",
		},
		[]string{"kind"}, // local_change, server_change
	)

	ConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lbcore_document_conflicts_total",
			Help: "Total number of concurrent document edits resolved by sibling conflict file",
		},
	)

	DocEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lbcore_doc_events_total",
			Help: "Total number of recorded document activity events by kind",
		},
		[]string{"kind"}, // Read, Write (model.EventKind values)
	)

	DocsGCedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lbcore_documents_gced_total",
			Help: "Total number of document blobs removed by retain()",
		},
	)
)

func init() {
	registry.MustRegister(
		SyncTotal,
		SyncDuration,
		WorkUnitsTotal,
		ConflictsTotal,
		DocEventsTotal,
		DocsGCedTotal,
	)
}

// Registry returns the private registry backing lbcore's collectors, for a
// host application that wants to expose them alongside its own.
func Registry() *prometheus.Registry {
	return registry
}

// Timer measures an operation's wall-clock duration.
type Timer struct{ start time.Time }

// NewTimer starts a timer.
func NewTimer() Timer { return Timer{start: time.Now()} }

// ObserveDuration records elapsed time since NewTimer into histogram.
func (t Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}
