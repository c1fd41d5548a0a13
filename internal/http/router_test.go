package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-admin-console/internal/config"
	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/http/handlers"
	"github.com/tbourn/go-admin-console/internal/http/middleware"
	"github.com/tbourn/go-admin-console/internal/i18n"
	"github.com/tbourn/go-admin-console/internal/repo"
	"github.com/tbourn/go-admin-console/internal/resource"
	"github.com/tbourn/go-admin-console/internal/services"
	"github.com/tbourn/go-admin-console/internal/session"
)

// ----- fakes -----

type fakeAuth struct{ id *domain.Identity }

func (f *fakeAuth) Authorize(adminOnly bool) (domain.Identity, error) {
	switch {
	case f.id == nil:
		return domain.Identity{}, services.ErrUnauthenticated
	case adminOnly && !f.id.IsAdmin():
		return domain.Identity{}, services.ErrForbidden
	}
	return *f.id, nil
}
func (f *fakeAuth) Login(context.Context, domain.LoginRequest) (domain.Identity, error) {
	return domain.Identity{}, services.ErrUnauthenticated
}
func (f *fakeAuth) Logout(context.Context) error { return nil }
func (f *fakeAuth) Me(context.Context) (domain.Identity, error) {
	return f.Authorize(false)
}

type fakeSession struct{}

func (fakeSession) State() session.State {
	return session.State{Language: "zh-CN", Theme: session.ThemeLight}
}
func (fakeSession) SetLanguage(context.Context, string) error { return nil }
func (fakeSession) SetTheme(context.Context, string) error    { return nil }
func (fakeSession) Language() language.Tag                    { return i18n.Chinese }

type countingArticles struct{ creates atomic.Int32 }

func (f *countingArticles) List(context.Context, services.ArticleFilter) (*services.Page[domain.Article], error) {
	return &services.Page[domain.Article]{
		Items: []domain.Article{{ID: 1, Title: "Hello"}}, Total: 1, Page: 1, PageSize: 10,
		Status: resource.StatusFresh, FetchedAt: time.Now(),
	}, nil
}
func (f *countingArticles) Get(_ context.Context, id int64) (*domain.Article, error) {
	return &domain.Article{ID: id}, nil
}
func (f *countingArticles) Create(_ context.Context, in domain.ArticleInput) (*domain.Article, error) {
	n := f.creates.Add(1)
	return &domain.Article{ID: int64(n), Title: in.Title}, nil
}
func (f *countingArticles) Update(_ context.Context, id int64, in domain.ArticleInput) (*domain.Article, error) {
	return &domain.Article{ID: id, Title: in.Title}, nil
}
func (f *countingArticles) Delete(context.Context, int64) error { return nil }

type fakeCache struct{}

func (fakeCache) Entries() []resource.Snapshot { return nil }
func (fakeCache) Invalidate(string) int        { return 2 }

// ----- helpers -----

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   50,
		OTEL:        config.OTELConfig{ServiceName: "test-console"},
	}
}

type fixture struct {
	r        *gin.Engine
	auth     *fakeAuth
	articles *countingArticles
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{r: gin.New(), auth: &fakeAuth{}, articles: &countingArticles{}}
	RegisterRoutes(f.r, Deps{
		Handlers: &handlers.Handlers{
			Auth:     f.auth,
			Session:  fakeSession{},
			Articles: f.articles,
			Cache:    fakeCache{},
		},
		Auth:        f.auth,
		Language:    fakeSession{},
		Idempotency: repo.IdempotencyStore{DB: newTestDB(t)},
	}, cfg)
	return f
}

func (f *fixture) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

// ----- tests -----

func TestRegisterRoutes_OperationalEndpointsAndFallbacks(t *testing.T) {
	f := newFixture(t, baseConfig())

	w := f.do(http.MethodGet, "/health", "", map[string]string{"Origin": "https://ui.example"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all CORS = %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing baseline headers: %v", w.Header())
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}

	if w := f.do(http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound ||
		!strings.Contains(w.Body.String(), handlers.ErrCodeNotFound) {
		t.Fatalf("NoRoute = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodPatch, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("NoMethod = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_SessionGuards(t *testing.T) {
	f := newFixture(t, baseConfig())

	if w := f.do(http.MethodGet, "/api/v1/session", "", nil); w.Code != http.StatusOK {
		t.Fatalf("public session = %d", w.Code)
	}

	w := f.do(http.MethodGet, "/api/v1/articles?lang=en-US", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("signed-out list = %d", w.Code)
	}
	if w.Header().Get("Content-Language") != "en-US" {
		t.Fatalf("Content-Language = %q", w.Header().Get("Content-Language"))
	}

	f.auth.id = &domain.Identity{UserID: 7, Role: "editor"}
	if w := f.do(http.MethodGet, "/api/v1/articles", "", nil); w.Code != http.StatusOK ||
		!strings.Contains(w.Body.String(), `"Hello"`) {
		t.Fatalf("signed-in list = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodGet, "/api/v1/cache", "", nil); w.Code != http.StatusOK {
		t.Fatalf("cache view = %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/api/v1/cache/articles/invalidate", "", nil); w.Code != http.StatusForbidden {
		t.Fatalf("editor invalidate = %d", w.Code)
	}

	f.auth.id = &domain.Identity{UserID: 1, Role: domain.RoleAdmin}
	if w := f.do(http.MethodPost, "/api/v1/cache/articles/invalidate", "", nil); w.Code != http.StatusOK {
		t.Fatalf("admin invalidate = %d %s", w.Code, w.Body.String())
	}
	// No user service wired: route absent.
	if w := f.do(http.MethodGet, "/api/v1/users", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("users without service = %d", w.Code)
	}
}

func TestRegisterRoutes_IdempotentCreateReplays(t *testing.T) {
	f := newFixture(t, baseConfig())
	f.auth.id = &domain.Identity{UserID: 7, Role: "editor"}

	body := `{"title":"T","content":"C","category_id":1}`
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "create-article-1"}

	first := f.do(http.MethodPost, "/api/v1/articles", body, hdr)
	if first.Code != http.StatusCreated {
		t.Fatalf("first create = %d %s", first.Code, first.Body.String())
	}
	second := f.do(http.MethodPost, "/api/v1/articles", body, hdr)
	if second.Code != http.StatusCreated || second.Header().Get(middleware.HeaderIdempotentReplay) != "true" {
		t.Fatalf("replay = %d %v", second.Code, second.Header())
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body %q != %q", second.Body.String(), first.Body.String())
	}
	if n := f.articles.creates.Load(); n != 1 {
		t.Fatalf("service called %d times", n)
	}
}

func TestRegisterRoutes_RateLimited(t *testing.T) {
	cfg := baseConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 1
	f := newFixture(t, cfg)
	f.auth.id = &domain.Identity{UserID: 9, Role: "editor"}

	if w := f.do(http.MethodGet, "/api/v1/articles", "", nil); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/v1/articles", "", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d", w.Code)
	}
}

func TestRegisterRoutes_AllowlistAndSwagger(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS.AllowedOrigins = []string{"https://ok.example"}
	cfg.SwaggerEnabled = true
	f := newFixture(t, cfg)

	w := f.do(http.MethodGet, "/health", "", map[string]string{"Origin": "https://ok.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ok.example" {
		t.Fatalf("allowlisted origin = %q", got)
	}
	if w := f.do(http.MethodGet, "/swagger/doc.json", "", nil); w.Code != http.StatusOK ||
		!strings.Contains(w.Body.String(), "/articles") {
		t.Fatalf("swagger doc = %d", w.Code)
	}
}

func TestGroupWithPrefix(t *testing.T) {
	r := gin.New()
	if got := groupWithPrefix(r, "/").BasePath(); got != "/" {
		t.Fatalf("root group = %q", got)
	}
	if got := groupWithPrefix(r, "/api").BasePath(); got != "/api" {
		t.Fatalf("prefixed group = %q", got)
	}
}
