package middleware

// Idempotent writes.
//
// A write that carries an Idempotency-Key header reserves the key before it
// runs and records its response once it succeeds. Repeating it with the same
// key, operator, method and route replays the stored response instead of
// sending the write upstream again. A repeat that arrives while the first
// request is still running is rejected with 409. Failed writes release the
// key so the client may retry.

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-admin-console/internal/domain"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplay is set to "true" on replayed responses.
const HeaderIdempotentReplay = "Idempotent-Replay"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyStore persists reservations and responses of writes.
//
// Reserve claims the key and reports reserved=true, or returns the live
// record already holding it (nil if none could be read). Complete stores
// the response of a reserved write; Release drops an unfinished reservation.
type IdempotencyStore interface {
	Reserve(ctx context.Context, operator, scope, key string, now time.Time) (rec *domain.Idempotency, reserved bool, err error)
	Complete(ctx context.Context, operator, scope, key string, status int, body []byte) error
	Release(ctx context.Context, operator, scope, key string) error
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil uses ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// GetIdempotencyKey returns the validated key of the current request.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := asString(mustGet(c, ctxKeyIdemKey))
	return s, s != ""
}

// IsReplay reports whether the response was served from the store.
func IsReplay(c *gin.Context) bool {
	b, _ := mustGet(c, ctxKeyIdemReplay).(bool)
	return b
}

// Idempotency validates the Idempotency-Key header of unsafe requests,
// replays stored responses and records successful new ones. Requests
// without the header, and safe methods, pass through untouched. When the
// store fails the request runs without idempotency.
//
// Install it after the session middleware so the operator is known.
func Idempotency(opts IdempotencyOptions, store IdempotencyStore) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)
		if store == nil {
			c.Next()
			return
		}

		operator := OperatorFrom(c)
		scope := c.Request.Method + " " + c.Request.URL.Path
		// Bookkeeping must finish even when the client goes away.
		ctx := context.WithoutCancel(c.Request.Context())
		lg := LoggerFrom(c)

		rec, reserved, err := store.Reserve(ctx, operator, scope, key, time.Now().UTC())
		if err != nil {
			lg.Warn().Err(err).Msg("idempotency reserve failed")
			c.Next()
			return
		}
		if !reserved {
			if rec == nil || rec.Pending() {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"request_id": RequestIDFrom(c),
					"code":       "idempotency_in_progress",
					"message":    "a request with this Idempotency-Key is still in progress",
				})
				return
			}
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
			c.Header(HeaderIdempotentReplay, "true")
			if len(rec.Body) == 0 {
				c.AbortWithStatus(rec.Status)
				return
			}
			c.Data(rec.Status, "application/json; charset=utf-8", rec.Body)
			c.Abort()
			return
		}

		completed := false
		defer func() {
			// Also runs when the handler panics.
			if completed {
				return
			}
			if err := store.Release(ctx, operator, scope, key); err != nil {
				lg.Warn().Err(err).Str("scope", scope).Msg("idempotency release failed")
			}
		}()

		rw := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rw
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		if err := store.Complete(ctx, operator, scope, key, status, rw.buf.Bytes()); err != nil {
			lg.Warn().Err(err).Str("scope", scope).Msg("idempotency save failed")
			return
		}
		completed = true
	}
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// bodyRecorder copies the response body while it is written.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
