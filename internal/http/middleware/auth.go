package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/i18n"
	"github.com/tbourn/go-admin-console/internal/services"
)

const (
	operatorKey = "operator"
	identityKey = "identity"
	languageKey = "language"
)

// Authorizer resolves the signed-in operator.
type Authorizer interface {
	Authorize(adminOnly bool) (domain.Identity, error)
}

// LanguageSource yields the operator's stored language.
type LanguageSource interface {
	Language() language.Tag
}

// RequireSession rejects requests without a signed-in operator (401) or,
// when adminOnly is set, without the admin role (403). On success the
// operator id and identity are stored in the context.
func RequireSession(a Authorizer, adminOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Authorize(adminOnly)
		switch {
		case errors.Is(err, services.ErrUnauthenticated):
			abortLocalized(c, http.StatusUnauthorized, "unauthenticated", "auth.required")
			return
		case errors.Is(err, services.ErrForbidden):
			abortLocalized(c, http.StatusForbidden, "forbidden", "auth.forbidden")
			return
		case err != nil:
			abortLocalized(c, http.StatusInternalServerError, "internal_error", "error.internal")
			return
		}
		c.Set(operatorKey, strconv.FormatInt(id.UserID, 10))
		c.Set(identityKey, id)
		c.Next()
	}
}

// OperatorFrom returns the operator id set by RequireSession, or "".
func OperatorFrom(c *gin.Context) string {
	return asString(mustGet(c, operatorKey))
}

// IdentityFrom returns the identity set by RequireSession.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	id, ok := mustGet(c, identityKey).(domain.Identity)
	return id, ok
}

// Language picks the response language: a supported ?lang= value first,
// then Accept-Language, then the operator's stored preference.
func Language(src LanguageSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tag language.Tag
		switch q, h := c.Query("lang"), c.GetHeader("Accept-Language"); {
		case q != "" && i18n.IsSupported(q):
			tag = i18n.Match(q)
		case h != "":
			tag = i18n.Match(h)
		case src != nil:
			tag = src.Language()
		default:
			tag = i18n.Chinese
		}
		c.Set(languageKey, tag)
		c.Header("Content-Language", tag.String())
		c.Next()
	}
}

// LanguageFrom returns the language chosen by Language, defaulting to Chinese.
func LanguageFrom(c *gin.Context) language.Tag {
	if t, ok := mustGet(c, languageKey).(language.Tag); ok {
		return t
	}
	return i18n.Chinese
}

func abortLocalized(c *gin.Context, status int, code, key string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       code,
		"message":    i18n.T(LanguageFrom(c), key),
	})
}
