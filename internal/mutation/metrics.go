package mutation

import "github.com/prometheus/client_golang/prometheus"

var (
	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resource_mutations_total",
			Help: "Remote writes by resource type, operation and outcome.",
		},
		[]string{"resource", "op", "outcome"},
	)
	latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resource_mutation_duration_seconds",
			Help:    "Latency of remote writes including validation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource", "op"},
	)
)

func init() {
	prometheus.MustRegister(mutations, latency)
}
