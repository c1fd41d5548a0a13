package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/articles/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/articles", func(c *gin.Context) {
		c.Set(ctxKeyIdemReplay, true)
		c.Status(http.StatusCreated)
	})

	baseOK := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/articles/:id", "200"))
	base404 := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "404"))
	baseReplay := testutil.ToFloat64(httpReplays.WithLabelValues("/articles"))

	for _, p := range []string{"/articles/1", "/articles/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/articles", nil))

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/articles/:id", "200")); got != baseOK+2 {
		t.Fatalf("route counter = %v, want %v", got, baseOK+2)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "404")); got != base404+1 {
		t.Fatalf("unmatched counter = %v, want %v", got, base404+1)
	}
	if got := testutil.ToFloat64(httpReplays.WithLabelValues("/articles")); got != baseReplay+1 {
		t.Fatalf("replays = %v, want %v", got, baseReplay+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v", got)
	}
}
