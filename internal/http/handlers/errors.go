package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-admin-console/internal/apierr"
	"github.com/tbourn/go-admin-console/internal/http/middleware"
	"github.com/tbourn/go-admin-console/internal/mutation"
	"github.com/tbourn/go-admin-console/internal/services"
	"github.com/tbourn/go-admin-console/internal/session"
)

// Error codes. Clients branch on these, never on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthenticated"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	ErrCodeValidation  = "validation_failed"
	ErrCodeUpstream    = "upstream_error"
	ErrCodeUnreachable = "upstream_unreachable"
	ErrCodeTimeout     = "upstream_timeout"
)

// respondError maps a service error onto the envelope. fallbackKey names the
// catalog message used when the remote API supplied none.
func respondError(c *gin.Context, err error, fallbackKey string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		failKey(c, http.StatusNotFound, ErrCodeNotFound, "error.notFound")
		return
	case errors.Is(err, services.ErrInvalidFilter), errors.Is(err, session.ErrUnsupported):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, services.ErrUnauthenticated):
		failKey(c, http.StatusUnauthorized, ErrCodeUnauthorized, "auth.required")
		return
	case errors.Is(err, services.ErrForbidden):
		failKey(c, http.StatusForbidden, ErrCodeForbidden, "auth.forbidden")
		return
	}

	var me *mutation.Error
	if errors.As(err, &me) {
		msg := me.ServerMessage
		if msg == "" && me.Kind == apierr.KindValidation {
			msg = me.Message()
		}
		if msg == "" {
			msg = tr(c, me.FallbackKey())
		}
		fail(c, statusFor(me.Kind, me.StatusCode), codeFor(me.Kind), msg)
		return
	}

	if ae, isAPI := apierr.As(err); isAPI {
		var msg string
		if ae.Kind == apierr.KindServer || ae.Kind == apierr.KindValidation {
			msg = ae.Message
		}
		if msg == "" {
			msg = tr(c, fallbackFor(ae.Kind, fallbackKey))
		}
		fail(c, statusFor(ae.Kind, ae.StatusCode), codeFor(ae.Kind), msg)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		failKey(c, http.StatusGatewayTimeout, ErrCodeTimeout, "error.timeout")
		return
	}
	middleware.LoggerFrom(c).Error().Err(err).Msg("unmapped error")
	failKey(c, http.StatusInternalServerError, ErrCodeInternal, "error.internal")
}

func statusFor(k apierr.Kind, upstream int) int {
	switch k {
	case apierr.KindValidation:
		return http.StatusBadRequest
	case apierr.KindTimeout:
		return http.StatusGatewayTimeout
	case apierr.KindServer:
		if upstream >= 400 && upstream < 500 {
			return upstream
		}
	}
	return http.StatusBadGateway
}

func codeFor(k apierr.Kind) string {
	switch k {
	case apierr.KindValidation:
		return ErrCodeValidation
	case apierr.KindTransport:
		return ErrCodeUnreachable
	case apierr.KindTimeout:
		return ErrCodeTimeout
	default:
		return ErrCodeUpstream
	}
}

func fallbackFor(k apierr.Kind, key string) string {
	if key != "" {
		return key
	}
	switch k {
	case apierr.KindTimeout:
		return "error.timeout"
	case apierr.KindTransport:
		return "error.transport"
	case apierr.KindValidation:
		return "error.validation"
	}
	return "error.internal"
}
