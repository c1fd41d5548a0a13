package middleware

// Prometheus instrumentation for the console API, registered on the default
// registry under the "console" namespace. Metrics() maintains:
//
//   - http_requests_total{method,path,status}: requests served
//   - http_request_duration_seconds{method,path}: latency histogram
//   - http_requests_inflight: requests currently being served
//   - http_idempotent_replays_total{path}: writes answered from the
//     idempotency store instead of the remote API
//
// The path label is the registered Gin route (e.g. /api/v1/articles/:id),
// so article and user ids never become label values. Requests that match no
// route share the single value "unmatched", so requests for random URLs
// cannot grow the series count. Status is the numeric code as a string.

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "console",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "console",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "console",
			Name:      "http_requests_inflight",
			Help:      "HTTP requests currently being served.",
		},
	)

	httpReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "console",
			Name:      "http_idempotent_replays_total",
			Help:      "Writes answered from the idempotency store.",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpLatency, httpInflight, httpReplays)
}

// Metrics records request count, latency and concurrency. Install it early
// so rejected and replayed requests are counted too.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if IsReplay(c) {
			httpReplays.WithLabelValues(path).Inc()
		}
	}
}
