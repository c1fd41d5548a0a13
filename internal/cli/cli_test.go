package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-admin-console/internal/apierr"
	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/i18n"
	"github.com/tbourn/go-admin-console/internal/mutation"
	"github.com/tbourn/go-admin-console/internal/services"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	reply := func(w http.ResponseWriter, data any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 200, "message": "ok", "data": data})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ms-user/auth/login", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"access_token": "t", "user_id": 2, "name": "Lin", "email": "lin@example.com", "role": "editor"})
	})
	mux.HandleFunc("/api/ms-content/category/all", func(w http.ResponseWriter, r *http.Request) {
		reply(w, []map[string]any{
			{"id": 1, "name": "News", "slug": "news", "articles_count": 4},
			{"id": 2, "name": "Guides", "slug": "guides", "articles_count": 0},
		})
	})
	mux.HandleFunc("/api/ms-content/article", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			body["id"] = 11
			reply(w, body)
			return
		}
		reply(w, map[string]any{"items": []any{}, "total": 0, "per_page": 10, "current_page": 1})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setup(t *testing.T) {
	t.Helper()
	t.Setenv("UPSTREAM_BASE_URL", fakeAPI(t).URL+"/api")
	t.Setenv("SESSION_DB_PATH", filepath.Join(t.TempDir(), "cli.db"))
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_SignedOutIsRejected(t *testing.T) {
	setup(t)
	_, err := run(t, "", "list", "categories", "--lang", "en-US")
	require.Error(t, err)
	assert.Equal(t, "Please sign in first", err.Error())
}

func TestCLI_LoginListAndPreferences(t *testing.T) {
	setup(t)

	out, err := run(t, "secret\n", "login", "--email", "lin@example.com", "-o", "json")
	require.NoError(t, err)
	var id domain.Identity
	require.NoError(t, json.Unmarshal([]byte(out), &id))
	assert.Equal(t, "Lin", id.Name)
	assert.Empty(t, id.AccessToken)

	// The session persists across invocations.
	out, err = run(t, "", "list", "categories", "--per-page", "1", "--lang", "en-US")
	require.NoError(t, err)
	assert.Contains(t, out, "Articles Count")
	assert.Contains(t, out, "News")
	assert.NotContains(t, out, "Guides")
	assert.Contains(t, out, "2 records in total")

	out, err = run(t, "", "whoami", "--offline", "-o", "yaml")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "editor", doc["role"])

	_, err = run(t, "", "list", "users")
	assert.Error(t, err, "users are admin-only")

	out, err = run(t, "", "lang", "en-US")
	require.NoError(t, err)
	assert.Equal(t, "en-US\n", out)

	_, err = run(t, "", "theme", "neon")
	assert.Error(t, err)

	out, err = run(t, "", "logout")
	require.NoError(t, err)
	assert.Equal(t, "Signed out\n", out)
}

func TestCLI_CreateFromYAML(t *testing.T) {
	setup(t)
	_, err := run(t, "", "login", "--email", "lin@example.com", "--password", "pw")
	require.NoError(t, err)

	payload := "title: Hello\ncontent: Body\ncategory_id: 1\n"
	out, err := run(t, payload, "create", "articles", "-f", "-", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": 11`)

	file := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("title: ''\ncontent: x\ncategory_id: 1\n"), 0o600))
	_, err = run(t, "", "create", "articles", "-f", file)
	require.Error(t, err)
}

func TestCLI_ArgumentErrors(t *testing.T) {
	setup(t)
	_, err := run(t, "", "list", "widgets")
	assert.ErrorContains(t, err, "unknown resource")
	_, err = run(t, "", "get", "articles", "zero")
	assert.ErrorContains(t, err, "invalid id")
	_, err = run(t, "", "list", "articles", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestExplain(t *testing.T) {
	en := i18n.English
	cases := []struct {
		err  error
		want string
	}{
		{services.ErrForbidden, "You do not have access"},
		{services.ErrNotFound, "Record not found"},
		{apierr.Timeout("remote.get", context.DeadlineExceeded), "The request timed out"},
		{apierr.Transport("remote.get", errors.New("refused")), "Cannot reach the server"},
		{apierr.Server("remote.get", 500, "db down"), "db down"},
		{&mutation.Error{ResourceType: "articles", Op: mutation.OpCreate, Kind: apierr.KindServer}, "Failed to create article"},
		{&mutation.Error{ResourceType: "articles", Op: mutation.OpCreate, Kind: apierr.KindServer, ServerMessage: "slug taken"}, "slug taken"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, explain(en, tc.err).Error())
	}
	assert.NoError(t, explain(en, nil))
}
