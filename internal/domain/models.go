// Package domain defines the console's data shapes: the remote content
// records (articles, categories, users), the payloads written back to the
// remote API, and the GORM models persisted locally (preferences and
// idempotency records).
package domain

import "time"

// Resource types known to the cache and the remote route table.
const (
	ResourceArticles   = "articles"
	ResourceCategories = "categories"
	ResourceUsers      = "users"
)

// Article publication states accepted by the remote API.
const (
	ArticleDraft     = "draft"
	ArticlePublished = "published"
	ArticleArchived  = "archived"
)

// RoleAdmin is the role allowed to manage users.
const RoleAdmin = "admin"

// CategoryRef is the embedded category summary on an article.
type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Article is a content record as served by the remote API.
type Article struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Excerpt     string      `json:"excerpt"`
	CategoryID  int64       `json:"category_id"`
	Category    CategoryRef `json:"category"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
}

// Category groups articles.
type Category struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Slug          string    `json:"slug"`
	ArticlesCount int64     `json:"articles_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User is a console account.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// ArticleInput is the create/update payload for an article.
type ArticleInput struct {
	Title      string `json:"title"       validate:"required,max=200"`
	Content    string `json:"content"     validate:"required"`
	Excerpt    string `json:"excerpt"     validate:"max=500"`
	CategoryID int64  `json:"category_id" validate:"required,gt=0"`
}

// CategoryInput is the create/update payload for a category.
type CategoryInput struct {
	Name        string `json:"name"        validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Slug        string `json:"slug"        validate:"required,max=100"`
}

// UserInput is the create/update payload for a user. Password is required
// on create only; an update with a blank password leaves it unchanged.
type UserInput struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"omitempty,min=6"`
	Role     string `json:"role"     validate:"required,oneof=admin editor viewer"`
}

// LoginRequest carries operator credentials.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Identity is the authenticated operator as returned by login and /me.
type Identity struct {
	AccessToken string `json:"access_token,omitempty"`
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Avatar      string `json:"avatar"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
