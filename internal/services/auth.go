package services

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-admin-console/internal/apierr"
	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/remote"
)

// Remote is the subset of the transport used for authentication.
type Remote interface {
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// Session is the persisted operator state.
type Session interface {
	Token() string
	Identity() (domain.Identity, bool)
	SetAuth(ctx context.Context, token string, user domain.Identity) error
	UpdateIdentity(ctx context.Context, user domain.Identity) error
	ClearAuth(ctx context.Context) error
}

// AuthService signs operators in and out of the console.
type AuthService struct {
	Remote  Remote
	Session Session
	Cache   Cache
	// AllowedRoles lists the roles admitted into the console; empty admits all.
	AllowedRoles []string

	validate *validator.Validate
}

// NewAuthService wires an AuthService.
func NewAuthService(r Remote, s Session, c Cache, allowedRoles []string) *AuthService {
	return &AuthService{
		Remote:       r,
		Session:      s,
		Cache:        c,
		AllowedRoles: allowedRoles,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Login authenticates with the remote API and persists the session. Cached
// data from a previous operator is invalidated.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (domain.Identity, error) {
	const op = "auth.login"

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return domain.Identity{}, apierr.Validation(op, "email and password are required")
	}

	raw, err := s.Remote.Post(ctx, remote.PathLogin, req)
	if err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil || id.AccessToken == "" {
		return domain.Identity{}, apierr.Server(op, 0, "login response carries no token")
	}
	if !s.roleAllowed(id.Role) {
		log.Warn().Str("email", req.Email).Str("role", id.Role).Msg("console access denied for role")
		return domain.Identity{}, ErrForbidden
	}

	token := id.AccessToken
	if err := s.Session.SetAuth(ctx, token, id); err != nil {
		return domain.Identity{}, err
	}
	s.invalidateAll()
	id.AccessToken = ""
	return id, nil
}

// Logout clears the persisted session and the cache.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.Session.ClearAuth(ctx); err != nil {
		return err
	}
	s.invalidateAll()
	return nil
}

// Me refreshes the operator profile from the remote API.
func (s *AuthService) Me(ctx context.Context) (domain.Identity, error) {
	if s.Session.Token() == "" {
		return domain.Identity{}, ErrUnauthenticated
	}
	raw, err := s.Remote.Get(ctx, remote.PathMe, nil)
	if err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return domain.Identity{}, apierr.Server("auth.me", 0, "malformed profile")
	}
	id.AccessToken = ""
	if err := s.Session.UpdateIdentity(ctx, id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// Authorize returns the signed-in operator, requiring the admin role when
// adminOnly is set.
func (s *AuthService) Authorize(adminOnly bool) (domain.Identity, error) {
	id, ok := s.Session.Identity()
	if !ok || s.Session.Token() == "" {
		return domain.Identity{}, ErrUnauthenticated
	}
	if !s.roleAllowed(id.Role) || (adminOnly && !id.IsAdmin()) {
		return id, ErrForbidden
	}
	return id, nil
}

func (s *AuthService) roleAllowed(role string) bool {
	if len(s.AllowedRoles) == 0 {
		return true
	}
	return slices.Contains(s.AllowedRoles, role)
}

func (s *AuthService) invalidateAll() {
	if s.Cache == nil {
		return
	}
	for _, rt := range []string{domain.ResourceArticles, domain.ResourceCategories, domain.ResourceUsers} {
		s.Cache.Invalidate(rt)
	}
}
