package handlers

import (
	"context"

	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/resource"
	"github.com/tbourn/go-admin-console/internal/services"
	"github.com/tbourn/go-admin-console/internal/session"
)

// AuthService signs operators in and out.
type AuthService interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.Identity, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (domain.Identity, error)
}

// SessionStore exposes the persisted operator preferences.
type SessionStore interface {
	State() session.State
	SetLanguage(ctx context.Context, lang string) error
	SetTheme(ctx context.Context, theme string) error
}

// ArticleService manages articles.
type ArticleService interface {
	List(ctx context.Context, f services.ArticleFilter) (*services.Page[domain.Article], error)
	Get(ctx context.Context, id int64) (*domain.Article, error)
	Create(ctx context.Context, in domain.ArticleInput) (*domain.Article, error)
	Update(ctx context.Context, id int64, in domain.ArticleInput) (*domain.Article, error)
	Delete(ctx context.Context, id int64) error
}

// CategoryService manages categories.
type CategoryService interface {
	List(ctx context.Context, page, perPage int) (*services.Page[domain.Category], error)
	Get(ctx context.Context, id int64) (*domain.Category, error)
	Create(ctx context.Context, in domain.CategoryInput) (*domain.Category, error)
	Update(ctx context.Context, id int64, in domain.CategoryInput) (*domain.Category, error)
	Delete(ctx context.Context, id int64) error
}

// UserService manages console accounts.
type UserService interface {
	List(ctx context.Context, page, perPage int) (*services.Page[domain.User], error)
	Get(ctx context.Context, id int64) (*domain.User, error)
	Create(ctx context.Context, in domain.UserInput) (*domain.User, error)
	Update(ctx context.Context, id int64, in domain.UserInput) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
}

// DashboardService computes dashboard totals.
type DashboardService interface {
	Stats(ctx context.Context, includeUsers bool) (services.Stats, error)
}

// CacheInspector exposes the resource cache for diagnostics.
type CacheInspector interface {
	Entries() []resource.Snapshot
	Invalidate(resourceType string) int
}

// Handlers groups the console endpoints. Nil services leave their routes
// unregistered by the router.
type Handlers struct {
	Auth       AuthService
	Session    SessionStore
	Articles   ArticleService
	Categories CategoryService
	Users      UserService
	Dashboard  DashboardService
	Cache      CacheInspector
}
