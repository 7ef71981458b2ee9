// Package metrics provides Prometheus metrics for the cache engine.
// Everything is labeled by namespace so per-consumer hit rates can be
// graphed side by side.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "semcache"

// LookupLatencyBuckets covers the expected range of a cache lookup: an
// embedding round trip plus a vector search.
var LookupLatencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1,
	0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0,
}

var (
	// LookupsTotal counts cache lookups by outcome (hit, miss).
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by outcome",
		},
		[]string{"cache", "result"},
	)

	// FalseCandidatesTotal counts candidates that cleared the similarity
	// threshold but were rejected by verification.
	FalseCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "false_candidates_total",
			Help:      "Similarity candidates rejected by the acceptance rule",
		},
		[]string{"cache"},
	)

	// DegradedTotal counts lookups and writes that degraded to a miss or
	// no-op because of an internal error.
	DegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_total",
			Help:      "Cache operations degraded to miss/no-op by error kind",
		},
		[]string{"cache", "kind"},
	)

	// TimeSavedSeconds accumulates the estimated computation time skipped
	// thanks to cache hits.
	TimeSavedSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "time_saved_seconds_total",
			Help:      "Estimated computation seconds saved by cache hits",
		},
		[]string{"cache"},
	)

	// LookupLatency tracks cache lookup latency.
	LookupLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_latency_seconds",
			Help:      "Cache lookup latency in seconds",
			Buckets:   LookupLatencyBuckets,
		},
		[]string{"cache"},
	)

	// PrunedEntriesTotal counts entries removed by the pruning job.
	PrunedEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_entries_total",
			Help:      "Entries removed by retention pruning",
		},
		[]string{"cache"},
	)
)
