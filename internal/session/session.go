// Package session is the console's persisted client state: the signed-in
// operator, the UI language and the theme.
//
// Values are loaded once when the Store opens and written through to SQLite
// on every change. Each key is independent and the last write wins.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/i18n"
	"github.com/tbourn/go-admin-console/internal/repo"
)

// Themes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ErrUnsupported is returned for a language or theme the console does not offer.
var ErrUnsupported = errors.New("unsupported value")

// Auth is the persisted authentication state.
type Auth struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

// State is a copy of the session values.
type State struct {
	Authenticated bool             `json:"authenticated" yaml:"authenticated"`
	User          *domain.Identity `json:"user,omitempty" yaml:"user,omitempty"`
	Language      string           `json:"language" yaml:"language"`
	Theme         string           `json:"theme" yaml:"theme"`
}

// Store holds the session in memory and persists every change.
// It is safe for concurrent use.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger

	// wmu serializes writes so the database and memory apply them in the
	// same order. mu guards the fields below.
	wmu   sync.Mutex
	mu    sync.RWMutex
	auth  *Auth
	lang  language.Tag
	theme string
}

// Open loads the persisted session from db. defaultLang applies when no
// language was saved yet (empty selects zh-CN). Malformed stored values are
// logged and replaced by defaults rather than failing startup.
func Open(ctx context.Context, db *gorm.DB, defaultLang string) (*Store, error) {
	s := &Store{
		db:    db,
		log:   log.With().Str("component", "session").Logger(),
		lang:  i18n.Match(defaultLang),
		theme: ThemeLight,
	}

	stored, err := repo.LoadPreferences(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if raw, ok := stored[domain.PrefAuth]; ok {
		var a Auth
		if err := json.Unmarshal([]byte(raw), &a); err != nil || a.Token == "" {
			s.log.Warn().Err(err).Msg("discarding malformed auth state")
		} else {
			s.auth = &a
		}
	}
	if raw, ok := stored[domain.PrefLanguage]; ok {
		var l string
		if err := json.Unmarshal([]byte(raw), &l); err == nil && i18n.IsSupported(l) {
			s.lang = language.MustParse(l)
		} else {
			s.log.Warn().Str("value", raw).Msg("discarding stored language")
		}
	}
	if raw, ok := stored[domain.PrefTheme]; ok {
		var th string
		if err := json.Unmarshal([]byte(raw), &th); err == nil && validTheme(th) {
			s.theme = th
		}
	}
	return s, nil
}

// Token returns the bearer token of the signed-in operator, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return ""
	}
	return s.auth.Token
}

// Identity returns the signed-in operator.
func (s *Store) Identity() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return domain.Identity{}, false
	}
	return s.auth.User, true
}

// Authenticated reports whether an operator is signed in.
func (s *Store) Authenticated() bool { return s.Token() != "" }

// SetAuth records a successful login.
func (s *Store) SetAuth(ctx context.Context, token string, user domain.Identity) error {
	if token == "" {
		return errors.New("session: empty token")
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.setAuthLocked(ctx, token, user)
}

// setAuthLocked persists and applies auth state. Caller holds s.wmu.
func (s *Store) setAuthLocked(ctx context.Context, token string, user domain.Identity) error {
	user.AccessToken = ""
	a := &Auth{Token: token, User: user}
	if err := s.put(ctx, domain.PrefAuth, a); err != nil {
		return err
	}
	s.mu.Lock()
	s.auth = a
	s.mu.Unlock()
	return nil
}

// UpdateIdentity refreshes the stored operator profile, keeping the token.
func (s *Store) UpdateIdentity(ctx context.Context, user domain.Identity) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.mu.RLock()
	cur := s.auth
	s.mu.RUnlock()
	if cur == nil {
		return errors.New("session: not signed in")
	}
	return s.setAuthLocked(ctx, cur.Token, user)
}

// ClearAuth signs the operator out.
func (s *Store) ClearAuth(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := repo.DeletePreference(ctx, s.db, domain.PrefAuth); err != nil {
		return err
	}
	s.mu.Lock()
	s.auth = nil
	s.mu.Unlock()
	return nil
}

// Language returns the UI language.
func (s *Store) Language() language.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

// SetLanguage persists lang, which must be a catalog language ("zh-CN", "en-US").
func (s *Store) SetLanguage(ctx context.Context, lang string) error {
	if !i18n.IsSupported(lang) {
		return fmt.Errorf("language %q: %w", lang, ErrUnsupported)
	}
	tag := language.MustParse(lang)
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.put(ctx, domain.PrefLanguage, tag.String()); err != nil {
		return err
	}
	s.mu.Lock()
	s.lang = tag
	s.mu.Unlock()
	return nil
}

// Theme returns the UI theme.
func (s *Store) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme persists theme ("light" or "dark").
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if !validTheme(theme) {
		return fmt.Errorf("theme %q: %w", theme, ErrUnsupported)
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.put(ctx, domain.PrefTheme, theme); err != nil {
		return err
	}
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	return nil
}

// State returns a copy of the current session values.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{Language: s.lang.String(), Theme: s.theme}
	if s.auth != nil {
		u := s.auth.User
		st.Authenticated = true
		st.User = &u
	}
	return st
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := repo.PutPreference(ctx, s.db, key, string(b)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func validTheme(t string) bool { return t == ThemeLight || t == ThemeDark }
