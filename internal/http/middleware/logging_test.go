package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-admin-console/internal/remote"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("decode log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestRequestID_GeneratesPropagatesAndReachesRemoteContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())

	var fromCtx string
	r.GET("/rid", func(c *gin.Context) {
		fromCtx = remote.RequestIDFrom(c.Request.Context())
		c.String(http.StatusOK, RequestIDFrom(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rid", nil))
	gen := w.Header().Get(requestIDHeader)
	if gen == "" || w.Body.String() != gen || fromCtx != gen {
		t.Fatalf("generated id header=%q body=%q ctx=%q", gen, w.Body.String(), fromCtx)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set("x-request-id", "abc-123")
	r.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "abc-123" || fromCtx != "abc-123" {
		t.Fatalf("propagated id = %q (ctx %q)", got, fromCtx)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", 200))
	r.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); len(got) > 128 {
		t.Fatalf("oversized id should be replaced, got %d chars", len(got))
	}
}

func TestAccessLog_LevelsRedactionAndOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), AccessLog(LogOptions{LogHeaders: []string{"Authorization", "X-Client"}}))
	r.GET("/ok", func(c *gin.Context) {
		c.Set(operatorKey, "7")
		LoggerFrom(c).Debug().Msg("inside")
		c.String(http.StatusOK, "ok")
	})
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(http.ErrAbortHandler)
		c.Status(http.StatusBadGateway)
	})

	req := httptest.NewRequest(http.MethodGet, "/ok?email=jane.doe%40example.com&page=2", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Client", "cli")
	r.ServeHTTP(httptest.NewRecorder(), req)

	m := lastLine(t, buf)
	if m["level"] != "info" || m["status"] != float64(200) || m["operator"] != "7" {
		t.Fatalf("unexpected ok line: %v", m)
	}
	if q := m["query"].(string); strings.Contains(q, "example.com") || !strings.Contains(q, "page=2") {
		t.Fatalf("query not redacted: %q", q)
	}
	h := m["headers"].(map[string]any)
	if h["Authorization"] != "[REDACTED]" || h["X-Client"] != "cli" {
		t.Fatalf("headers = %v", h)
	}
	if m["path"] != "/ok" || m["request_id"] == "" {
		t.Fatalf("missing request fields: %v", m)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	if m := lastLine(t, buf); m["level"] != "warn" {
		t.Fatalf("4xx level = %v", m["level"])
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	m = lastLine(t, buf)
	if m["level"] != "error" || m["errors"] == nil {
		t.Fatalf("5xx line = %v", m)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if m := lastLine(t, buf); m["path"] != "/nowhere" {
		t.Fatalf("unmatched path = %v", m["path"])
	}
}

func TestRecovery_JSONAndAlreadyWritten(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] == "" {
		t.Fatalf("body = %v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))
	if w.Code != http.StatusOK || w.Body.String() != "partial" {
		t.Fatalf("late panic: %d %q", w.Code, w.Body.String())
	}
}

func TestLoggerFrom_FallsBackOutsideAccessLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if LoggerFrom(c) == nil {
		t.Fatal("nil logger")
	}
	c.Set("logger", "not a logger")
	if LoggerFrom(c) == nil {
		t.Fatal("nil logger for wrong type")
	}
}
