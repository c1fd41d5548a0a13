package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-admin-console/internal/apierr"
	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/http/middleware"
	"github.com/tbourn/go-admin-console/internal/mutation"
	"github.com/tbourn/go-admin-console/internal/resource"
	"github.com/tbourn/go-admin-console/internal/services"
	"github.com/tbourn/go-admin-console/internal/session"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestFail_ServerErrorsAreLogged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := gin.New()
	r.Use(middleware.RequestID(), func(c *gin.Context) {
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/boom", func(c *gin.Context) { fail(c, http.StatusBadGateway, ErrCodeUpstream, "down") })
	r.GET("/bad", func(c *gin.Context) { Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "nope") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	resp := decodeError(t, w)
	if w.Code != http.StatusBadGateway || resp.Code != ErrCodeUpstream || resp.RequestID == "" {
		t.Fatalf("unexpected: %d %+v", w.Code, resp)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("5xx not logged: %s", buf.String())
	}

	buf.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
	if w.Code != http.StatusBadRequest || buf.Len() != 0 {
		t.Fatalf("4xx: status=%d log=%q", w.Code, buf.String())
	}
}

func TestRespondError_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	createErr := func(kind apierr.Kind, status int, serverMsg string) error {
		return &mutation.Error{
			ResourceType:  domain.ResourceArticles,
			Op:            mutation.OpCreate,
			Kind:          kind,
			StatusCode:    status,
			ServerMessage: serverMsg,
			Err:           &apierr.Error{Kind: kind, StatusCode: status, Message: serverMsg},
		}
	}

	cases := []struct {
		name     string
		err      error
		fallback string
		status   int
		code     string
		message  string
	}{
		{"not found", services.ErrNotFound, "", 404, ErrCodeNotFound, "Record not found"},
		{"bad filter", fmt.Errorf("%w: status", services.ErrInvalidFilter), "", 400, ErrCodeBadRequest, "invalid filter: status"},
		{"bad theme", fmt.Errorf("theme %q: %w", "pink", session.ErrUnsupported), "", 400, ErrCodeBadRequest, `theme "pink": unsupported value`},
		{"signed out", services.ErrUnauthenticated, "", 401, ErrCodeUnauthorized, "Please sign in first"},
		{"forbidden", services.ErrForbidden, "", 403, ErrCodeForbidden, "You do not have access"},
		{"write server message", createErr(apierr.KindServer, 422, "Title taken"), "", 422, ErrCodeUpstream, "Title taken"},
		{"write server 500 generic", createErr(apierr.KindServer, 500, ""), "", 502, ErrCodeUpstream, "Failed to create article"},
		{"write transport", createErr(apierr.KindTransport, 0, ""), "", 502, ErrCodeUnreachable, "Failed to create article"},
		{"write timeout", createErr(apierr.KindTimeout, 0, ""), "", 504, ErrCodeTimeout, "Failed to create article"},
		{"write validation", &mutation.Error{
			ResourceType: domain.ResourceArticles, Op: mutation.OpCreate, Kind: apierr.KindValidation,
			Err: apierr.Validation("x", "Title failed \"required\""),
		}, "", 400, ErrCodeValidation, "Title failed \"required\""},
		{"read server message", apierr.Server("fetch", 404, "no such page"), "articles.loadFailed", 404, ErrCodeUpstream, "no such page"},
		{"read transport", apierr.Transport("fetch", errors.New("refused")), "articles.loadFailed", 502, ErrCodeUnreachable, "Failed to load articles"},
		{"read timeout no key", apierr.Timeout("fetch", context.DeadlineExceeded), "", 504, ErrCodeTimeout, "The request timed out"},
		{"bare deadline", context.DeadlineExceeded, "", 504, ErrCodeTimeout, "The request timed out"},
		{"unknown", errors.New("weird"), "", 500, ErrCodeInternal, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.Language(nil))
			r.GET("/x", func(c *gin.Context) { respondError(c, tc.err, tc.fallback) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?lang=en-US", nil))
			resp := decodeError(t, w)
			if w.Code != tc.status || resp.Code != tc.code || resp.Message != tc.message {
				t.Fatalf("got %d %+v; want %d %s %q", w.Code, resp, tc.status, tc.code, tc.message)
			}
		})
	}
}

func TestRespondError_LocalizedFallbackInChinese(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Language(nil))
	r.GET("/x", func(c *gin.Context) {
		respondError(c, &mutation.Error{
			ResourceType: domain.ResourceCategories, Op: mutation.OpDelete, Kind: apierr.KindTransport,
		}, "")
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if got := decodeError(t, w).Message; got != "删除分类失败" {
		t.Fatalf("message = %q", got)
	}
}

func TestWriteList_ETagAndWarning(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fetched := time.Unix(1_700_000_000, 0).UTC()
	fresh := &services.Page[domain.Category]{
		Items: []domain.Category{{ID: 1, Name: "News"}}, Total: 21, Page: 2, PageSize: 10,
		Status: resource.StatusFresh, FetchedAt: fetched,
	}
	degraded := &services.Page[domain.Category]{
		Items: []domain.Category{{ID: 1}}, Total: 1, Page: 1, PageSize: 10,
		Status: resource.StatusErrored, FetchedAt: fetched, Error: "server error",
	}

	r := gin.New()
	r.Use(middleware.Language(nil))
	r.GET("/fresh", func(c *gin.Context) { writeList(c, fresh, "categories.loadFailed") })
	r.GET("/degraded", func(c *gin.Context) { writeList(c, degraded, "categories.loadFailed") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fresh", nil))
	var body ListResponse[domain.Category]
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Pagination{Page: 2, PerPage: 10, Total: 21, TotalPages: 3, HasNext: true}
	if body.Pagination != want || body.Status != "fresh" || body.Warning != "" {
		t.Fatalf("body = %+v", body)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/fresh", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/degraded?lang=en-US", nil))
	body = ListResponse[domain.Category]{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Warning != "Failed to load categories" || body.Status != "errored" || w.Header().Get("ETag") != "" {
		t.Fatalf("degraded = %+v etag=%q", body, w.Header().Get("ETag"))
	}
}
