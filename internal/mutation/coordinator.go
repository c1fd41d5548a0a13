package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-admin-console/internal/apierr"
)

// Writer is the write half of the remote transport.
type Writer interface {
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
}

// Router maps resource types to remote paths.
type Router interface {
	CollectionPath(resourceType string) (string, error)
	ItemPath(resourceType string, id int64) (string, error)
}

// Invalidator is the part of the resource cache a Coordinator needs.
type Invalidator interface {
	Invalidate(resourceType string) int
}

// Coordinator executes writes and propagates them to the cache.
// It is safe for concurrent use.
type Coordinator struct {
	writer   Writer
	routes   Router
	cache    Invalidator
	validate *validator.Validate
	log      zerolog.Logger
	tracer   trace.Tracer
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for write diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l.With().Str("component", "mutation").Logger() }
}

// WithValidator replaces the payload validator (e.g. to register custom tags).
func WithValidator(v *validator.Validate) Option {
	return func(c *Coordinator) { c.validate = v }
}

// NewCoordinator wires a Coordinator to the transport, route table and cache.
func NewCoordinator(w Writer, r Router, cache Invalidator, opts ...Option) *Coordinator {
	c := &Coordinator{
		writer:   w,
		routes:   r,
		cache:    cache,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With().Str("component", "mutation").Logger(),
		tracer:   otel.Tracer("mutation/Coordinator"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Mutate validates req, performs the remote write and, on success,
// invalidates every cache entry of req.ResourceType before returning.
// All failures are *Error values; validation failures never reach the network.
func (c *Coordinator) Mutate(ctx context.Context, req Request) (Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "Mutate",
		trace.WithAttributes(
			attribute.String("resource.type", req.ResourceType),
			attribute.String("mutation.op", req.Op.String()),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := c.mutate(ctx, req)
	latency.WithLabelValues(req.ResourceType, req.Op.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		mutations.WithLabelValues(req.ResourceType, req.Op.String(), err.Kind.String()).Inc()
		ev := c.log.Warn()
		if err.Kind == apierr.KindValidation {
			ev = c.log.Debug()
		}
		ev.Str("resource", req.ResourceType).
			Str("op", req.Op.String()).
			Str("kind", err.Kind.String()).
			Int("status", err.StatusCode).
			Msg(err.Message())
		return Outcome{}, err
	}

	mutations.WithLabelValues(req.ResourceType, req.Op.String(), "ok").Inc()
	c.log.Info().
		Str("resource", req.ResourceType).
		Str("op", req.Op.String()).
		Int("invalidated", out.Invalidated).
		Msg("mutation applied")
	return out, nil
}

func (c *Coordinator) mutate(ctx context.Context, req Request) (Outcome, *Error) {
	const op = "mutation.validate"

	if verr := c.check(req); verr != nil {
		return Outcome{}, newError(req, apierr.Validation(op, verr.Error()))
	}

	var (
		path string
		err  error
	)
	if req.Op == OpCreate {
		path, err = c.routes.CollectionPath(req.ResourceType)
	} else {
		path, err = c.routes.ItemPath(req.ResourceType, *req.ID)
	}
	if err != nil {
		return Outcome{}, newError(req, apierr.Validation(op, err.Error()))
	}

	body := req.Payload
	if req.Op != OpDelete {
		if body, err = omitFields(req.Payload, req.Omit); err != nil {
			return Outcome{}, newError(req, apierr.Validation(op, err.Error()))
		}
	}

	var raw json.RawMessage
	switch req.Op {
	case OpCreate:
		raw, err = c.writer.Post(ctx, path, body)
	case OpUpdate:
		raw, err = c.writer.Put(ctx, path, body)
	case OpDelete:
		raw, err = c.writer.Delete(ctx, path)
	}
	if err != nil {
		return Outcome{}, newError(req, apierr.Classify("mutation."+req.Op.String(), err))
	}

	out := Outcome{ResourceType: req.ResourceType, Op: req.Op}
	if req.Op != OpDelete && len(raw) > 0 && string(raw) != "null" {
		out.Record = raw
	}
	out.Invalidated = c.cache.Invalidate(req.ResourceType)
	return out, nil
}

// check enforces the request shape and payload constraints.
func (c *Coordinator) check(req Request) error {
	if strings.TrimSpace(req.ResourceType) == "" {
		return errors.New("resource type is required")
	}
	switch req.Op {
	case OpCreate:
		if req.ID != nil {
			return errors.New("create must not carry a record id")
		}
	case OpUpdate, OpDelete:
		if req.ID == nil {
			return fmt.Errorf("%s requires a record id", req.Op)
		}
		if *req.ID <= 0 {
			return fmt.Errorf("%s requires a positive record id", req.Op)
		}
	default:
		return errors.New("unknown operation")
	}

	if req.Op == OpDelete {
		return nil
	}
	if isNil(req.Payload) {
		return fmt.Errorf("%s requires a payload", req.Op)
	}
	if isStruct(req.Payload) {
		if err := c.validate.Struct(req.Payload); err != nil {
			return describeValidation(err)
		}
	}
	return nil
}

// describeValidation flattens validator errors into one readable message.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
