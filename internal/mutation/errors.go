package mutation

import (
	"fmt"

	"github.com/tbourn/go-admin-console/internal/apierr"
)

// Error is returned by Coordinator.Mutate for every failure.
//
// ServerMessage carries the message reported by the remote API, when there
// is one; Message falls back to a generic per-operation text otherwise.
type Error struct {
	ResourceType  string
	Op            Op
	Kind          apierr.Kind
	ServerMessage string
	StatusCode    int
	Err           error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.ResourceType, e.Message())
}

// Unwrap exposes the underlying *apierr.Error.
func (e *Error) Unwrap() error { return e.Err }

// Message returns the text a consumer should show: the server message when
// present, else a generic failure message for the operation.
func (e *Error) Message() string {
	if e.ServerMessage != "" {
		return e.ServerMessage
	}
	if e.Kind == apierr.KindValidation {
		if ae, ok := apierr.As(e.Err); ok && ae.Message != "" {
			return ae.Message
		}
	}
	return fmt.Sprintf("%s %s failed", e.Op, e.ResourceType)
}

// FallbackKey is the message-catalog key of the localized generic failure
// message, e.g. "articles.createFailed".
func (e *Error) FallbackKey() string {
	return e.ResourceType + "." + e.Op.String() + "Failed"
}

func newError(req Request, err *apierr.Error) *Error {
	me := &Error{
		ResourceType: req.ResourceType,
		Op:           req.Op,
		Kind:         err.Kind,
		StatusCode:   err.StatusCode,
		Err:          err,
	}
	if err.Kind == apierr.KindServer {
		me.ServerMessage = err.Message
	}
	return me
}
