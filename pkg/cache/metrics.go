package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by store
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_cache_hits_total",
			Help: "Total number of cache store hits",
		},
		[]string{"store"},
	)

	// CacheMisses tracks cache misses by store
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_cache_misses_total",
			Help: "Total number of cache store misses",
		},
		[]string{"store"},
	)

	// CacheWrites tracks entries written by store
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_cache_writes_total",
			Help: "Total number of entries written to cache stores",
		},
		[]string{"store"},
	)

	// PartialSkipped tracks 206 responses that were deliberately not stored
	PartialSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_cache_partial_skipped_total",
			Help: "Total number of partial content responses not persisted",
		},
		[]string{"store"},
	)

	// CacheErrors tracks storage backend errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "open", "match", "put", "delete", "delete_store", ...
	)

	// StoresDeleted tracks whole stores removed by migration or clear
	StoresDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "asset_cache_stores_deleted_total",
			Help: "Total number of cache stores deleted",
		},
	)
)
