package resource

import "github.com/prometheus/client_golang/prometheus"

var (
	// queries counts Query/Wait/Subscribe lookups by resource type and how
	// they were answered: hit, stale, miss, dedup or retry.
	queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resource_cache_queries_total",
			Help: "Resource cache lookups by outcome.",
		},
		[]string{"resource", "result"},
	)

	// fetches counts settled fetches by outcome ("ok" or an error kind).
	fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resource_cache_fetches_total",
			Help: "Remote fetches performed by the resource cache.",
		},
		[]string{"resource", "outcome"},
	)

	fetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resource_cache_fetch_duration_seconds",
			Help:    "Duration of resource cache fetches, retries included.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resource_cache_invalidations_total",
			Help: "Coarse invalidations by resource type.",
		},
		[]string{"resource"},
	)

	evictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resource_cache_evictions_total",
			Help: "Entries removed by the garbage-collection sweep.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "resource_cache_entries",
			Help: "Entries currently held by the resource cache.",
		},
	)
)

func init() {
	prometheus.MustRegister(queries, fetches, fetchLatency, invalidations, evictions, cacheEntries)
}
