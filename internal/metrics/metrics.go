// Package metrics exposes turbogrep's Prometheus collectors: remote
// index request counts/latency, embedding request counts/latency,
// synchronizer chunk counts, and search latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds every metric turbogrep registers, grouped by the
// component that emits it.
type Collector struct {
	RemoteIndexRequestsTotal   *prometheus.CounterVec
	RemoteIndexRequestDuration *prometheus.HistogramVec

	EmbeddingRequestsTotal   *prometheus.CounterVec
	EmbeddingDuration        *prometheus.HistogramVec
	EmbeddingCacheHits       prometheus.Counter
	EmbeddingCacheMisses     prometheus.Counter

	SyncChunksUploaded prometheus.Counter
	SyncChunksDeleted  prometheus.Counter
	SyncDuration       prometheus.Histogram
	SyncErrorsTotal    *prometheus.CounterVec

	SearchDuration    *prometheus.HistogramVec
	SearchResultCount prometheus.Histogram
}

// New creates and registers every collector against prometheus's
// default registry.
func New(namespace string) *Collector {
	return NewWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates every collector against a caller-supplied
// registry, for tests that need isolation from the package-global one.
func NewWithRegistry(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "turbogrep"
	}
	f := promauto.With(reg)

	return &Collector{
		RemoteIndexRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote_index",
			Name:      "requests_total",
			Help:      "Total requests issued to the remote index, by operation and outcome.",
		}, []string{"operation", "outcome"}),

		RemoteIndexRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote_index",
			Name:      "request_duration_seconds",
			Help:      "Remote index request latency, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		EmbeddingRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Total embedding requests, by provider and outcome.",
		}, []string{"provider", "outcome"}),

		EmbeddingDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "request_duration_seconds",
			Help:      "Embedding request latency, by provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),

		EmbeddingCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "cache_hits_total",
			Help:      "Embedding cache hits.",
		}),

		EmbeddingCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "cache_misses_total",
			Help:      "Embedding cache misses.",
		}),

		SyncChunksUploaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "chunks_uploaded_total",
			Help:      "Chunks uploaded to the remote index by the synchronizer.",
		}),

		SyncChunksDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "chunks_deleted_total",
			Help:      "Chunks deleted from the remote index by the synchronizer.",
		}),

		SyncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Full synchronization pass duration.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		SyncErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Synchronizer errors, by stage.",
		}, []string{"stage"}),

		SearchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search request latency, by mode (semantic/regex).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),

		SearchResultCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "result_count",
			Help:      "Number of results returned per search.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}),
	}
}
