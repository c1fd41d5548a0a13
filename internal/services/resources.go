package services

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-admin-console/internal/mutation"
	"github.com/tbourn/go-admin-console/internal/remote"
	"github.com/tbourn/go-admin-console/internal/resource"
)

// Cache is the part of the resource store used by services.
type Cache interface {
	Wait(ctx context.Context, d resource.Descriptor) (resource.Snapshot, error)
	Invalidate(resourceType string) int
}

// Mutator performs remote writes.
type Mutator interface {
	Mutate(ctx context.Context, req mutation.Request) (mutation.Outcome, error)
}

// Page is a typed page of records.
//
// When a refetch failed but earlier data is still cached, Items holds that
// data, Status is "errored" and Error carries the failure message.
type Page[T any] struct {
	Items     []T             `json:"items"     yaml:"items"`
	Total     int64           `json:"total"     yaml:"total"`
	Page      int             `json:"page"      yaml:"page"`
	PageSize  int             `json:"page_size" yaml:"page_size"`
	Status    resource.Status `json:"status"    yaml:"status"`
	FetchedAt time.Time       `json:"fetched_at" yaml:"fetched_at"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

var tracer trace.Tracer = otel.Tracer("services")

// listPage reads d through the cache and decodes it. A failed fetch with no
// cached data is returned as the fetch's *apierr.Error.
func listPage[T any](ctx context.Context, c Cache, d resource.Descriptor) (*Page[T], error) {
	ctx, span := tracer.Start(ctx, "list",
		trace.WithAttributes(attribute.String("resource.type", d.ResourceType())))
	defer span.End()

	snap, err := c.Wait(ctx, d)
	if err != nil {
		return nil, err
	}
	if snap.Err != nil && snap.Data == nil {
		span.RecordError(snap.Err)
		return nil, snap.Err
	}
	items, err := resource.DecodeItems[T](snap.Data)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	p := &Page[T]{
		Items:     items,
		Status:    snap.Status,
		FetchedAt: snap.FetchedAt,
		Page:      d.Page(),
		PageSize:  d.PageSize(),
	}
	if snap.Data != nil {
		p.Total = snap.Data.Total
		p.Page = snap.Data.Page
		p.PageSize = snap.Data.PageSize
	}
	if snap.Err != nil {
		p.Error = snap.Err.Error()
	}
	return p, nil
}

// getOne reads a single record through the cache using the id filter.
func getOne[T any](ctx context.Context, c Cache, resourceType string, id int64) (*T, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	d, err := resource.NewDescriptor(resourceType, map[string]any{remote.FilterID: id}, 1, 1)
	if err != nil {
		return nil, err
	}
	p, err := listPage[T](ctx, c, d)
	if err != nil {
		return nil, err
	}
	if len(p.Items) == 0 {
		return nil, ErrNotFound
	}
	return &p.Items[0], nil
}

// decodeRecord decodes a write result; an empty record yields nil.
func decodeRecord[T any](out mutation.Outcome) (*T, error) {
	if len(out.Record) == 0 {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(out.Record, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
