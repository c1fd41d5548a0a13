// Package resource implements the console's read-through cache for paginated
// remote resources.
//
// A Store holds one entry per canonical Descriptor (resource type + filters +
// pagination). Reads are served from the entry when it is Fresh, served stale
// while a background refetch runs when it is Stale, and coalesced onto the
// in-flight fetch when it is Pending. Mutations elsewhere call Invalidate to
// mark every cached view of a resource type Stale.
package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tbourn/go-admin-console/internal/apierr"
)

// Descriptor identifies one filtered, paginated view of a resource type.
// It is immutable; construct it with NewDescriptor or ParseKey.
//
// Filter values are normalized on construction: every integer type becomes
// int64, integral floats become int64, other floats stay float64, strings and
// bools pass through and nil values are dropped. Two descriptors are equal
// when their Key() values are equal.
type Descriptor struct {
	resourceType string
	filters      map[string]any
	page         int
	pageSize     int
	key          string
}

// keyDoc is the canonical wire form of a Descriptor. encoding/json writes map
// keys in sorted order, which gives the key its stable ordering.
type keyDoc struct {
	Type     string         `json:"type"`
	Filters  map[string]any `json:"filters"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// NewDescriptor validates and canonicalizes a query descriptor.
func NewDescriptor(resourceType string, filters map[string]any, page, pageSize int) (Descriptor, error) {
	const op = "resource.descriptor"

	resourceType = strings.TrimSpace(resourceType)
	if resourceType == "" {
		return Descriptor{}, apierr.Validation(op, "resource type is required")
	}
	if page < 1 {
		return Descriptor{}, apierr.Validation(op, "page must be >= 1")
	}
	if pageSize < 1 {
		return Descriptor{}, apierr.Validation(op, "page size must be >= 1")
	}

	norm := make(map[string]any, len(filters))
	for k, v := range filters {
		if strings.TrimSpace(k) == "" {
			return Descriptor{}, apierr.Validation(op, "filter name must not be empty")
		}
		nv, keep, err := normalizeValue(v)
		if err != nil {
			return Descriptor{}, apierr.Validation(op, fmt.Sprintf("filter %q: %v", k, err))
		}
		if keep {
			norm[k] = nv
		}
	}

	d := Descriptor{resourceType: resourceType, filters: norm, page: page, pageSize: pageSize}
	raw, err := json.Marshal(keyDoc{Type: resourceType, Filters: norm, Page: page, PageSize: pageSize})
	if err != nil {
		return Descriptor{}, apierr.Validation(op, err.Error())
	}
	d.key = string(raw)
	return d, nil
}

// MustDescriptor is NewDescriptor for static descriptors; it panics on error.
func MustDescriptor(resourceType string, filters map[string]any, page, pageSize int) Descriptor {
	d, err := NewDescriptor(resourceType, filters, page, pageSize)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseKey decodes a canonical key produced by Descriptor.Key.
func ParseKey(key string) (Descriptor, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(key)))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var doc keyDoc
	if err := dec.Decode(&doc); err != nil {
		return Descriptor{}, apierr.Validation("resource.parse_key", "malformed descriptor key")
	}
	return NewDescriptor(doc.Type, doc.Filters, doc.Page, doc.PageSize)
}

// ResourceType returns the resource type (e.g. "articles").
func (d Descriptor) ResourceType() string { return d.resourceType }

// Page returns the 1-based page number.
func (d Descriptor) Page() int { return d.page }

// PageSize returns the page size.
func (d Descriptor) PageSize() int { return d.pageSize }

// Key returns the canonical serialization used as the cache key.
func (d Descriptor) Key() string { return d.key }

// String implements fmt.Stringer.
func (d Descriptor) String() string { return d.key }

// IsZero reports whether d was never constructed.
func (d Descriptor) IsZero() bool { return d.key == "" }

// Filter returns a single normalized filter value.
func (d Descriptor) Filter(name string) (any, bool) {
	v, ok := d.filters[name]
	return v, ok
}

// Filters returns a copy of the normalized filters.
func (d Descriptor) Filters() map[string]any {
	out := make(map[string]any, len(d.filters))
	for k, v := range d.filters {
		out[k] = v
	}
	return out
}

// Equal reports whether two descriptors share a canonical key.
func (d Descriptor) Equal(o Descriptor) bool { return d.key == o.key }

// normalizeValue maps a filter value onto the canonical primitive set.
// keep=false means the value is dropped (nil).
func normalizeValue(v any) (out any, keep bool, err error) {
	switch x := v.(type) {
	case nil:
		return nil, false, nil
	case string, bool:
		return x, true, nil
	case int:
		return int64(x), true, nil
	case int8:
		return int64(x), true, nil
	case int16:
		return int64(x), true, nil
	case int32:
		return int64(x), true, nil
	case int64:
		return x, true, nil
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return int64(x), true, nil
	case uint16:
		return int64(x), true, nil
	case uint32:
		return int64(x), true, nil
	case uint64:
		return uintValue(x)
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, false, fmt.Errorf("invalid number %q", x.String())
		}
		return floatValue(f)
	default:
		return nil, false, fmt.Errorf("unsupported value type %T", v)
	}
}

func uintValue(u uint64) (any, bool, error) {
	if u > math.MaxInt64 {
		return nil, false, fmt.Errorf("value %d overflows int64", u)
	}
	return int64(u), true, nil
}

func floatValue(f float64) (any, bool, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false, fmt.Errorf("value must be finite")
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f), true, nil
	}
	return f, true, nil
}
