// Package handlers implements the console's HTTP endpoints.
//
// Handlers are transport-thin: they parse input, call a service and render
// the result. Every failure leaves through fail(), so all error bodies share
// one envelope:
//
//	HTTP/1.1 502 Bad Gateway
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "upstream_error",
//	  "message": "Failed to create article"
//	}
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-admin-console/internal/http/middleware"
	"github.com/tbourn/go-admin-console/internal/i18n"
	"github.com/tbourn/go-admin-console/internal/services"
	"github.com/tbourn/go-admin-console/internal/utils"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Localized message, safe to show to operators
	Message string `json:"message" example:"Record not found"`
}

// MessageResponse carries a localized confirmation.
type MessageResponse struct {
	Message string `json:"message" example:"Deleted"`
}

// Pagination describes the page a list response holds.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListResponse is a page of records plus its cache state. Warning is set
// when a refresh failed and the items are the last good copy.
type ListResponse[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
	Status     string     `json:"status" example:"fresh"`
	FetchedAt  time.Time  `json:"fetched_at"`
	Warning    string     `json:"warning,omitempty"`
}

func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail writes the error envelope; used by the router for fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failKey is fail with a catalog message in the request language.
func failKey(c *gin.Context, status int, code, key string) {
	fail(c, status, code, tr(c, key))
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func tr(c *gin.Context, key string, args ...any) string {
	return i18n.T(middleware.LanguageFrom(c), key, args...)
}

// paging reads ?page= and ?per_page=. Bounds are applied by the services.
func paging(c *gin.Context) (page, perPage int) {
	return utils.AtoiDefault(c.Query("page"), 1), utils.AtoiDefault(c.Query("per_page"), 0)
}

// pathID parses the :id route parameter, answering 400 when it is invalid.
func pathID(c *gin.Context) (int64, bool) {
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, tr(c, "error.badRequest"))
	}
	return id, valid
}

// writeList renders p, honoring If-None-Match for settled fresh pages.
func writeList[T any](c *gin.Context, p *services.Page[T], loadKey string) {
	resp := ListResponse[T]{
		Items: p.Items,
		Pagination: Pagination{
			Page:       p.Page,
			PerPage:    p.PageSize,
			Total:      p.Total,
			TotalPages: utils.TotalPages(p.Total, p.PageSize),
		},
		Status:    p.Status.String(),
		FetchedAt: p.FetchedAt,
	}
	resp.Pagination.HasNext = resp.Pagination.Page < resp.Pagination.TotalPages
	if p.Error != "" {
		resp.Warning = tr(c, loadKey)
	}

	if resp.Warning == "" && !p.FetchedAt.IsZero() {
		etag := fmt.Sprintf(`W/"%d-%d-%d"`, p.Page, p.Total, p.FetchedAt.UnixNano())
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}
	ok(c, http.StatusOK, resp)
}
