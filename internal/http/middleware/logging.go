// Package middleware contains the Gin middleware of the console API.
//
// This file provides request correlation, the access log and panic recovery:
//
//   - RequestID() reuses or generates X-Request-ID, stores it in the Gin
//     context and in the request context so remote calls carry it too.
//   - AccessLog() attaches a request-scoped zerolog.Logger (key "logger") and
//     writes one structured line per request with credentials masked and
//     e-mail addresses scrubbed from the query string.
//   - Recovery() turns panics into the JSON error envelope.
//
// Order: RequestID, AccessLog, Recovery.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-admin-console/internal/remote"
)

const (
	requestIDKey      = "requestID"
	requestIDHeader   = "X-Request-ID"
	maxQueryLogLength = 2048
)

var emailRE = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+(@|%40)[a-z0-9.\-]+\.[a-z]{2,}`)

// RequestID attaches (or propagates) a correlation identifier per request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Request = c.Request.WithContext(remote.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}

// RequestIDFrom returns the correlation id set by RequestID.
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// LogOptions configures AccessLog.
type LogOptions struct {
	// MaskHeaders are logged as "[REDACTED]" in addition to Authorization and Cookie.
	MaskHeaders []string
	// LogHeaders lists request headers copied into the access log.
	LogHeaders []string
}

// AccessLog writes one structured log line per request. 5xx and requests
// with Gin errors log at error level, 4xx at warn, everything else at info.
func AccessLog(opts LogOptions) gin.HandlerFunc {
	mask := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			mask[h] = struct{}{}
		}
	}
	logged := append([]string{"User-Agent", "Accept-Language"}, opts.LogHeaders...)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		headers := zerolog.Dict()
		for _, name := range logged {
			v := c.GetHeader(name)
			if v == "" {
				continue
			}
			if _, ok := mask[strings.ToLower(name)]; ok {
				v = "[REDACTED]"
			}
			headers = headers.Str(name, v)
		}

		l := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		c.Set("logger", &l)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = l.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev.Str("operator", asString(mustGet(c, operatorKey))).
			Str("query", redactQuery(c.Request.URL.RawQuery)).
			Dict("headers", headers).
			Int("status", status).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func redactQuery(q string) string {
	if len(q) > maxQueryLogLength {
		q = q[:maxQueryLogLength]
	}
	return emailRE.ReplaceAllString(q, "[REDACTED:email]")
}

// Recovery converts panics into a JSON 500 and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid := RequestIDFrom(c)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", rid).
					Msg("panic recovered")

				if c.Writer.Written() {
					c.AbortWithStatus(http.StatusInternalServerError)
					return
				}
				c.Header(requestIDHeader, rid)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"request_id": rid,
					"code":       "internal_error",
					"message":    "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or a plain one outside AccessLog.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func mustGet(c *gin.Context, key string) any {
	v, _ := c.Get(key)
	return v
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
