// Package remote is the HTTP transport to the content API.
//
// Every response is a JSON envelope {code, message, data}. Client unwraps
// the envelope and returns the raw data; failures are *apierr.Error values
// classified as transport, server or timeout errors so the resource cache
// can decide what to retry.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-admin-console/internal/apierr"
)

const (
	headerRequestID = "X-Request-ID"
	maxBodyBytes    = 8 << 20
)

// TokenSource yields the bearer token attached to outgoing requests.
// An empty token sends no Authorization header.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// Token calls f.
func (f TokenFunc) Token() string { return f() }

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the remote API. It is safe for concurrent use.
type Client struct {
	base           *url.URL
	hc             *http.Client
	tokens         TokenSource
	onUnauthorized func()
	log            zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.hc.Timeout = d } }

// WithTokens sets the bearer token source.
func WithTokens(ts TokenSource) Option { return func(c *Client) { c.tokens = ts } }

// WithUnauthorizedHook registers fn to run whenever the API answers 401,
// typically to drop the persisted session.
func WithUnauthorizedHook(fn func()) Option { return func(c *Client) { c.onUnauthorized = fn } }

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l.With().Str("component", "remote").Logger() }
}

// New returns a Client rooted at baseURL (scheme and host required).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute http(s)", baseURL)
	}
	c := &Client{
		base: u,
		hc:   &http.Client{Timeout: 30 * time.Second},
		log:  log.With().Str("component", "remote").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Get fetches path with the given query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Post sends body as JSON to path.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

// Put sends body as JSON to path.
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, path, nil, body)
}

// Delete issues a DELETE for path.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	op := "remote." + strings.ToLower(method)

	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, apierr.Validation(op, "encode request body: "+err.Error())
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, apierr.Validation(op, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	rid := RequestIDFrom(ctx)
	if rid == "" {
		rid = uuid.NewString()
	}
	req.Header.Set(headerRequestID, rid)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		e := classifyTransport(op, err)
		c.log.Debug().Err(err).Str("method", method).Str("path", u.Path).Str("request_id", rid).Msg("remote call failed")
		return nil, e
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransport(op, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", u.Path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", rid).
		Msg("remote call")

	if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	return decodeEnvelope(op, resp.StatusCode, raw)
}

// decodeEnvelope maps an HTTP response to its data or an *apierr.Error.
// A non-2xx status or an envelope code other than 0/200 is a server error;
// the envelope message, when present, becomes the error message.
func decodeEnvelope(op string, status int, raw []byte) (json.RawMessage, error) {
	ok := status >= 200 && status < 300
	if len(bytes.TrimSpace(raw)) == 0 {
		if ok {
			return nil, nil
		}
		return nil, apierr.Server(op, status, http.StatusText(status))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if ok {
			return nil, apierr.Server(op, status, "malformed response body")
		}
		return nil, apierr.Server(op, status, http.StatusText(status))
	}
	if !ok {
		return nil, apierr.Server(op, status, env.Message)
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		code := status
		if env.Code >= 100 && env.Code <= 599 {
			code = env.Code
		}
		return nil, apierr.Server(op, code, env.Message)
	}
	if string(env.Data) == "null" {
		return nil, nil
	}
	return env.Data, nil
}

func classifyTransport(op string, err error) *apierr.Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return apierr.Timeout(op, err)
	}
	return apierr.Transport(op, err)
}

type requestIDKey struct{}

// WithRequestID returns a context whose outgoing remote calls carry id as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the correlation id stored by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey{}).(string)
	return s
}
