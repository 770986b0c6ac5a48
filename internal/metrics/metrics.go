// Package metrics provides Prometheus metrics for search, indexing and
// background jobs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vconsearch"

var (
	// SearchRequests counts search requests.
	// Labels: mode (keyword, semantic, hybrid, tags), outcome (ok, invalid, error)
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of search requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// SearchDuration tracks search latency.
	// Labels: mode
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Duration of search requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// TagRefreshRows counts tag index rows changed by refreshes.
	TagRefreshRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tags",
			Name:      "refresh_rows_total",
			Help:      "Total number of tag index rows inserted, updated or deleted by refreshes",
		},
	)

	// TagIndexSize is the number of entries in the published tag index.
	TagIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tags",
			Name:      "index_entries",
			Help:      "Number of documents in the published tag index",
		},
	)

	// MalformedTagBodies counts tag attachments skipped during refresh.
	MalformedTagBodies = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tags",
			Name:      "malformed_bodies_total",
			Help:      "Total number of tag attachment bodies skipped as malformed",
		},
	)

	// EmbeddingQueueDepth is the number of content units awaiting embeddings.
	EmbeddingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "queue_depth",
			Help:      "Number of content units awaiting an embedding",
		},
	)

	// EmbeddingsWritten counts embeddings written by the drain.
	// Labels: result (success, error, stale)
	EmbeddingsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "writes_total",
			Help:      "Total number of embedding writes by result",
		},
		[]string{"result"},
	)

	// BackfillRows counts rows updated by tenant backfills.
	// Labels: table
	BackfillRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "rows_total",
			Help:      "Total number of rows updated by backfill batches",
		},
		[]string{"table"},
	)

	// BackfillRetries counts retried backfill batches.
	// Labels: table
	BackfillRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "batch_retries_total",
			Help:      "Total number of backfill batches retried after a transient failure",
		},
		[]string{"table"},
	)
)

// ObserveSearch records the outcome and latency of a search.
func ObserveSearch(mode string, start time.Time, outcome string) {
	SearchRequests.WithLabelValues(mode, outcome).Inc()
	SearchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}
