// Package app assembles the console from configuration: session database,
// remote client, resource cache, mutation coordinator and services. The
// HTTP server and the CLI both start from an App.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-admin-console/internal/config"
	httpapi "github.com/tbourn/go-admin-console/internal/http"
	"github.com/tbourn/go-admin-console/internal/http/handlers"
	"github.com/tbourn/go-admin-console/internal/mutation"
	"github.com/tbourn/go-admin-console/internal/remote"
	"github.com/tbourn/go-admin-console/internal/repo"
	"github.com/tbourn/go-admin-console/internal/resource"
	"github.com/tbourn/go-admin-console/internal/services"
	"github.com/tbourn/go-admin-console/internal/session"
)

const (
	shutdownGrace = 10 * time.Second
	purgeInterval = time.Hour
)

// App holds the long-lived components of one console process.
type App struct {
	Config config.Config

	DB      *gorm.DB
	Session *session.Store
	Remote  *remote.Client
	Cache   *resource.Store
	Writes  *mutation.Coordinator

	Auth       *services.AuthService
	Articles   *services.ArticleService
	Categories *services.CategoryService
	Users      *services.UserService
	Dashboard  *services.DashboardService

	Idempotency repo.IdempotencyStore
}

// Option customizes New.
type Option func(*[]remote.Option)

// WithRemoteOptions passes extra options to the remote client (tests).
func WithRemoteOptions(opts ...remote.Option) Option {
	return func(o *[]remote.Option) { *o = append(*o, opts...) }
}

// New opens the session database and wires every component.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	db, err := repo.OpenSQLite(cfg.Session.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate session db: %w", err)
	}
	sess, err := session.Open(ctx, db, cfg.Session.DefaultLanguage)
	if err != nil {
		return nil, err
	}

	ropts := []remote.Option{
		remote.WithTimeout(cfg.Upstream.Timeout),
		remote.WithTokens(remote.TokenFunc(sess.Token)),
		remote.WithUnauthorizedHook(func() {
			if err := sess.ClearAuth(context.Background()); err != nil {
				log.Warn().Err(err).Msg("clear session after 401")
			}
		}),
		remote.WithLogger(log.Logger),
	}
	for _, o := range opts {
		o(&ropts)
	}
	client, err := remote.New(cfg.Upstream.BaseURL, ropts...)
	if err != nil {
		return nil, err
	}

	routes := remote.DefaultRoutes()
	cache := resource.NewStore(remote.NewFetcher(client, routes), resource.Options{
		FetchTimeout: cfg.Cache.FetchTimeout,
		Retry:        cfg.Cache.Retry,
		RetryDelay:   cfg.Cache.RetryDelay,
		GCTTL:        cfg.Cache.GCTTL,
		GCInterval:   cfg.Cache.GCInterval,
	})
	writes := mutation.NewCoordinator(client, routes, cache, mutation.WithLogger(log.Logger))

	return &App{
		Config:      cfg,
		DB:          db,
		Session:     sess,
		Remote:      client,
		Cache:       cache,
		Writes:      writes,
		Auth:        services.NewAuthService(client, sess, cache, cfg.Session.AllowedRoles),
		Articles:    &services.ArticleService{Cache: cache, Writes: writes},
		Categories:  &services.CategoryService{Cache: cache, Writes: writes},
		Users:       &services.UserService{Cache: cache, Writes: writes},
		Dashboard:   &services.DashboardService{Cache: cache},
		Idempotency: repo.IdempotencyStore{DB: db, TTL: cfg.IdempotencyTTL},
	}, nil
}

// Handlers exposes the services to the HTTP layer.
func (a *App) Handlers() *handlers.Handlers {
	return &handlers.Handlers{
		Auth:       a.Auth,
		Session:    a.Session,
		Articles:   a.Articles,
		Categories: a.Categories,
		Users:      a.Users,
		Dashboard:  a.Dashboard,
		Cache:      a.Cache,
	}
}

// Router builds the Gin engine serving the console API.
func (a *App) Router() *gin.Engine {
	gin.SetMode(a.Config.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Handlers:    a.Handlers(),
		Auth:        a.Auth,
		Language:    a.Session,
		Idempotency: a.Idempotency,
	}, a.Config)
	return r
}

// RunMaintenance sweeps the cache and purges expired idempotency records
// until ctx is cancelled.
func (a *App) RunMaintenance(ctx context.Context) {
	go a.Cache.Run(ctx)

	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeIdempotency(ctx, a.DB, now)
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("idempotency records purged")
			}
		}
	}
}

// Serve listens on cfg.Port until ctx is cancelled, then drains in-flight
// requests for up to shutdownGrace.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+a.Config.Port)
	if err != nil {
		return err
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Router(),
		ReadTimeout:       a.Config.ReadTimeout,
		ReadHeaderTimeout: a.Config.ReadHeaderTimeout,
		WriteTimeout:      a.Config.WriteTimeout,
		IdleTimeout:       a.Config.IdleTimeout,
		MaxHeaderBytes:    a.Config.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Str("upstream", a.Config.Upstream.BaseURL).Msg("console listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.RunMaintenance(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// Close releases the session database.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
