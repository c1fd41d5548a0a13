// Package mutation performs remote writes for console resources and keeps
// the resource cache coherent with them.
//
// A Coordinator validates a Request locally, issues exactly one remote write
// and, only when the write succeeds, invalidates every cached view of the
// request's resource type. Failed writes leave the cache untouched. Writes
// are never retried and no optimistic updates are applied.
package mutation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Op is the kind of write.
type Op int

const (
	OpCreate Op = iota + 1
	OpUpdate
	OpDelete
)

// String returns the lowercase operation name.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Request describes one write against a resource type.
//
// ID must be nil for OpCreate and set (> 0) for OpUpdate and OpDelete.
// Payload is required for create and update; it may be a struct (validated
// through its `validate` tags), a map or raw JSON. Omit names top-level JSON
// fields stripped from the payload before sending, which is how callers
// express partial updates such as leaving a password unchanged.
type Request struct {
	ResourceType string
	Op           Op
	ID           *int64
	Payload      any
	Omit         []string
}

// Create builds an OpCreate request.
func Create(resourceType string, payload any) Request {
	return Request{ResourceType: resourceType, Op: OpCreate, Payload: payload}
}

// Update builds an OpUpdate request for id.
func Update(resourceType string, id int64, payload any, omit ...string) Request {
	return Request{ResourceType: resourceType, Op: OpUpdate, ID: &id, Payload: payload, Omit: omit}
}

// Delete builds an OpDelete request for id.
func Delete(resourceType string, id int64) Request {
	return Request{ResourceType: resourceType, Op: OpDelete, ID: &id}
}

// Outcome is the result of a successful write.
type Outcome struct {
	ResourceType string
	Op           Op
	// Record is the created or updated record as returned by the API; nil for deletes.
	Record json.RawMessage
	// Invalidated is the number of cache entries marked stale afterwards.
	Invalidated int
}

// Acknowledged reports whether the outcome is a bare acknowledgement (delete).
func (o Outcome) Acknowledged() bool { return o.Op == OpDelete }

// omitFields removes the named top-level fields from payload's JSON object
// form. Payloads that do not encode to an object cannot have fields omitted.
func omitFields(payload any, omit []string) (any, error) {
	if len(omit) == 0 {
		return payload, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("payload must be a JSON object to omit fields")
	}
	for _, f := range omit {
		delete(obj, strings.TrimSpace(f))
	}
	return obj, nil
}
