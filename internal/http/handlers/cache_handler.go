package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-admin-console/internal/domain"
)

// CacheEntry is one resource-cache entry as shown by the debug view.
type CacheEntry struct {
	Key         string    `json:"key"`
	Resource    string    `json:"resource"`
	Status      string    `json:"status"`
	Fetching    bool      `json:"fetching"`
	Subscribers int       `json:"subscribers"`
	Items       int       `json:"items"`
	Total       int64     `json:"total"`
	FetchedAt   time.Time `json:"fetched_at"`
	Error       string    `json:"error,omitempty"`
}

// InvalidateResponse reports how many entries were marked stale.
type InvalidateResponse struct {
	Resource    string `json:"resource"`
	Invalidated int    `json:"invalidated"`
}

// ListCache godoc
// @ID          listCache
// @Summary     Inspect the resource cache
// @Tags        Cache
// @Produce     json
// @Success     200  {array}  handlers.CacheEntry
// @Router      /cache [get]
func (h *Handlers) ListCache(c *gin.Context) {
	snaps := h.Cache.Entries()
	out := make([]CacheEntry, 0, len(snaps))
	for _, s := range snaps {
		e := CacheEntry{
			Key:         s.Key,
			Resource:    s.Descriptor.ResourceType(),
			Status:      s.Status.String(),
			Fetching:    s.Fetching,
			Subscribers: s.Subscribers,
			FetchedAt:   s.FetchedAt,
		}
		if s.Data != nil {
			e.Items = len(s.Data.Items)
			e.Total = s.Data.Total
		}
		if s.Err != nil {
			e.Error = s.Err.Error()
		}
		out = append(out, e)
	}
	ok(c, http.StatusOK, out)
}

// InvalidateCache godoc
// @ID          invalidateCache
// @Summary     Mark a resource type stale
// @Tags        Cache
// @Produce     json
// @Param       resource  path  string  true  "Resource type"  Enums(articles, categories, users)
// @Success     200  {object}  handlers.InvalidateResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /cache/{resource}/invalidate [post]
func (h *Handlers) InvalidateCache(c *gin.Context) {
	rt := c.Param("resource")
	switch rt {
	case domain.ResourceArticles, domain.ResourceCategories, domain.ResourceUsers:
	default:
		failKey(c, http.StatusNotFound, ErrCodeNotFound, "error.notFound")
		return
	}
	ok(c, http.StatusOK, InvalidateResponse{Resource: rt, Invalidated: h.Cache.Invalidate(rt)})
}
