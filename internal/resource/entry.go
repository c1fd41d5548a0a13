package resource

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tbourn/go-admin-console/internal/apierr"
)

// Status is the lifecycle state of a cache entry.
type Status int

const (
	// StatusPending: the first fetch (or a refetch after an error) is in flight.
	StatusPending Status = iota + 1
	// StatusFresh: data reflects the last successful fetch and has not been invalidated.
	StatusFresh
	// StatusStale: data was invalidated; the next read serves it and refetches.
	StatusStale
	// StatusErrored: the last fetch failed; the next read starts a new fetch.
	StatusErrored
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// MarshalText lets statuses render as names in JSON and YAML output.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Page is one page of records in server order. Records stay raw JSON so a
// single store can hold any resource type; use DecodeItems for typed access.
// A Page is never mutated after it has been stored.
type Page struct {
	Items    []json.RawMessage `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// DecodeItems decodes every record of p into T, preserving order.
func DecodeItems[T any](p *Page) ([]T, error) {
	if p == nil {
		return nil, nil
	}
	out := make([]T, 0, len(p.Items))
	for i, raw := range p.Items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Snapshot is a point-in-time copy of a cache entry handed to readers and
// subscribers.
type Snapshot struct {
	Descriptor  Descriptor    `json:"-"`
	Key         string        `json:"key"`
	Status      Status        `json:"status"`
	Data        *Page         `json:"data,omitempty"`
	Err         *apierr.Error `json:"-"`
	FetchedAt   time.Time     `json:"fetched_at"`
	Subscribers int           `json:"subscribers"`
	// Fetching is true while a fetch owned by this entry is in flight, which
	// includes background refetches of Stale entries.
	Fetching bool `json:"fetching"`

	// seq orders snapshots of one entry; subscribers drop older ones.
	seq uint64
}

// Settled reports whether the snapshot carries a final answer for its fetch.
func (s Snapshot) Settled() bool { return !s.Fetching && s.Status != StatusPending }

// entry is the mutable cache record. All fields are guarded by Store.mu.
type entry struct {
	desc      Descriptor
	status    Status
	data      *Page
	err       *apierr.Error
	fetchedAt time.Time
	lastUsed  time.Time
	subs      map[uint64]*subscription
	flight    *flight
	seq       uint64
}

// flight tracks the single in-flight fetch for an entry.
type flight struct {
	done chan struct{}
	// invalidated is set when Invalidate runs while the fetch is in flight;
	// the result is then stored as Stale instead of Fresh.
	invalidated bool
}

func (e *entry) snapshot() Snapshot {
	e.seq++
	return Snapshot{
		Descriptor:  e.desc,
		Key:         e.desc.Key(),
		Status:      e.status,
		Data:        e.data,
		Err:         e.err,
		FetchedAt:   e.fetchedAt,
		Subscribers: len(e.subs),
		Fetching:    e.flight != nil,
		seq:         e.seq,
	}
}

func (e *entry) subscribers() []*subscription {
	if len(e.subs) == 0 {
		return nil
	}
	out := make([]*subscription, 0, len(e.subs))
	for _, s := range e.subs {
		out = append(out, s)
	}
	return out
}
