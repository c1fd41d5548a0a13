// Package httpapi assembles the console's HTTP surface: the middleware
// chain, the operational endpoints and the versioned API routes.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. AccessLog (redacting)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. gzip
//  8. Language
//  9. CORS and security headers
//
// Signed-in groups add RequireSession, then Idempotency, then the rate
// limiter, so a replayed write never spends a token.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-admin-console/docs"
	"github.com/tbourn/go-admin-console/internal/config"
	"github.com/tbourn/go-admin-console/internal/http/handlers"
	"github.com/tbourn/go-admin-console/internal/http/middleware"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators the routes need.
type Deps struct {
	Handlers *handlers.Handlers
	// Auth resolves the signed-in operator for protected groups.
	Auth middleware.Authorizer
	// Language supplies the stored UI language; nil falls back to Chinese.
	Language middleware.LanguageSource
	// Idempotency persists replayable write responses; nil disables replay.
	Idempotency middleware.IdempotencyStore
}

// RegisterRoutes installs middleware and routes on r. Route groups whose
// handler service is nil are skipped.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(middleware.LogOptions{
		MaskHeaders: []string{middleware.HeaderIdempotencyKey},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.Language(deps.Language))
	r.Use(cors.New(corsConfig(cfg.CORS)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := deps.Handlers
	if h == nil {
		return
	}
	api := groupWithPrefix(r, cfg.APIBasePath)

	if h.Auth != nil {
		api.POST("/auth/login", h.Login)
	}
	if h.Session != nil {
		api.GET("/session", h.GetSession)
		api.PUT("/session/language", h.SetLanguage)
		api.PUT("/session/theme", h.SetTheme)
	}

	if deps.Auth == nil {
		return
	}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByOperatorOrIP())
	guard := func(adminOnly bool) []gin.HandlerFunc {
		chain := []gin.HandlerFunc{middleware.RequireSession(deps.Auth, adminOnly)}
		if deps.Idempotency != nil {
			chain = append(chain, middleware.Idempotency(middleware.IdempotencyOptions{MaxLen: 200}, deps.Idempotency))
		}
		return append(chain, rl.Handler())
	}

	signedIn := api.Group("", guard(false)...)
	{
		if h.Auth != nil {
			signedIn.GET("/auth/me", h.Me)
			signedIn.POST("/auth/logout", h.Logout)
		}
		if h.Articles != nil {
			signedIn.GET("/articles", h.ListArticles)
			signedIn.POST("/articles", h.CreateArticle)
			signedIn.GET("/articles/:id", h.GetArticle)
			signedIn.PUT("/articles/:id", h.UpdateArticle)
			signedIn.DELETE("/articles/:id", h.DeleteArticle)
		}
		if h.Categories != nil {
			signedIn.GET("/categories", h.ListCategories)
			signedIn.POST("/categories", h.CreateCategory)
			signedIn.GET("/categories/:id", h.GetCategory)
			signedIn.PUT("/categories/:id", h.UpdateCategory)
			signedIn.DELETE("/categories/:id", h.DeleteCategory)
		}
		if h.Dashboard != nil {
			signedIn.GET("/dashboard", h.GetDashboard)
		}
		if h.Cache != nil {
			signedIn.GET("/cache", h.ListCache)
		}
	}

	admin := api.Group("", guard(true)...)
	{
		if h.Users != nil {
			admin.GET("/users", h.ListUsers)
			admin.POST("/users", h.CreateUser)
			admin.GET("/users/:id", h.GetUser)
			admin.PUT("/users/:id", h.UpdateUser)
			admin.DELETE("/users/:id", h.DeleteUser)
		}
		if h.Cache != nil {
			admin.POST("/cache/:resource/invalidate", h.InvalidateCache)
		}
	}
}

// corsConfig allows every origin without credentials when no allowlist is
// configured, and exactly the allowlist otherwise.
func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization",
			"If-None-Match", middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "Content-Language", "ETag", middleware.HeaderIdempotentReplay},
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix; "" and "/" mean the root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
