// Package apierr defines the error taxonomy shared by the resource cache,
// the mutation coordinator, the remote transport and the HTTP layer.
//
// Every failure that crosses a component boundary is an *Error carrying one
// of four kinds:
//   - KindValidation: malformed request shape, detected before any network call
//   - KindTransport:  connection-level failure talking to the remote API
//   - KindServer:     non-2xx (or non-zero envelope code) response from the API
//   - KindTimeout:    the operation exceeded its configured duration
//
// Validation and timeout errors are produced locally; transport and server
// errors classify what the remote side did.
package apierr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an *Error.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindTransport
	KindServer
	KindTimeout
)

// String returns the stable lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the structured error value used across the console.
//
// Message holds the server-supplied message for KindServer (possibly empty)
// and a local description for the other kinds. StatusCode is the HTTP status
// of the remote response, or 0 when no response was received.
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Validation builds a KindValidation error.
func Validation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

// Transport builds a KindTransport error wrapping err.
func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: "remote API unreachable", Err: err}
}

// Server builds a KindServer error for the given HTTP status and server message.
func Server(op string, status int, msg string) *Error {
	return &Error{Kind: KindServer, Op: op, Message: msg, StatusCode: status}
}

// Timeout builds a KindTimeout error wrapping err (usually context.DeadlineExceeded).
func Timeout(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: "operation timed out", Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return 0
}

// Classify converts an arbitrary error returned by a remote call into an
// *Error. Existing *Error values pass through untouched; deadline errors
// become timeouts and everything else is a transport failure.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(op, err)
	}
	return Transport(op, err)
}

// Retryable reports whether a failed read may be attempted again: transport
// failures and server errors without a 4xx status are retryable, timeouts
// and validation errors are not.
func Retryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindTransport:
		return true
	case KindServer:
		return e.StatusCode == 0 || e.StatusCode >= 500
	default:
		return false
	}
}
