// Package restapi is the HTTP backend for the admin client. It maps the
// resource operations of types.Backend onto the storefront's REST API and
// translates transport and status failures into the shelf error taxonomy.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/shelf/pkg/types"
)

// apiPrefix is prepended to every resource path.
const apiPrefix = "api/admin"

// Envelope keys used by the storefront backend.
const (
	keyData     = "_data"
	keyMessage  = "_message"
	keyToken    = "_token"
	keyFallback = "message"
)

// maxBody caps how much of a response body is read.
const maxBody = 8 << 20

// TokenSource supplies the bearer token attached to every request. An empty
// token sends the request unauthenticated.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns itself.
type StaticToken string

// Token returns t.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// Client talks to the storefront admin API. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is left
// as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records request counts and latencies into m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client for cfg.BaseURL.
func New(cfg types.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("restapi: %w", err)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("restapi: %w", types.ErrBaseURLInvalid)
	}
	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: cfg.GetTimeout()},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List returns every record of resource.
func (c *Client) List(ctx context.Context, resource string) ([]types.Record, error) {
	data, err := c.do(ctx, "list", resource, http.MethodGet, c.endpoint(resource), nil)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []types.Record{}, nil
	}
	items, ok := data.([]any)
	if !ok {
		return nil, &types.BackendError{Status: http.StatusOK, Message: "expected a list of records"}
	}
	out := make([]types.Record, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &types.BackendError{Status: http.StatusOK, Message: "list item is not an object"}
		}
		out = append(out, types.Record(m))
	}
	return out, nil
}

// Create posts fields and returns the stored record.
func (c *Client) Create(ctx context.Context, resource string, fields types.Record) (types.Record, error) {
	data, err := c.do(ctx, "create", resource, http.MethodPost, c.endpoint(resource), fields)
	if err != nil {
		return nil, err
	}
	return asRecord(data)
}

// Update puts fields to the record identified by id. An empty response body
// yields a nil record.
func (c *Client) Update(ctx context.Context, resource, id string, fields types.Record) (types.Record, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	data, err := c.do(ctx, "update", resource, http.MethodPut, c.endpoint(resource, id), fields)
	if err != nil {
		return nil, err
	}
	return asRecord(data)
}

// Delete removes the record identified by id.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	_, err := c.do(ctx, "delete", resource, http.MethodDelete, c.endpoint(resource, id), nil)
	return err
}

// Login exchanges admin credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	data, err := c.do(ctx, "login", "user", http.MethodPost, c.endpoint("user", "login"), body)
	if err != nil {
		return "", err
	}
	m, _ := data.(map[string]any)
	token, _ := m[keyToken].(string)
	if token == "" {
		return "", &types.BackendError{Status: http.StatusOK, Message: "response missing token"}
	}
	return token, nil
}

// endpoint joins escaped path segments under the admin API prefix.
func (c *Client) endpoint(parts ...string) string {
	elems := []string{apiPrefix}
	for _, p := range parts {
		elems = append(elems, url.PathEscape(p))
	}
	return c.base.JoinPath(elems...).String()
}

// do performs one request and returns the decoded payload, unwrapped from
// the envelope when there is one.
func (c *Client) do(ctx context.Context, op, resource, method, target string, body any) (any, error) {
	start := time.Now()
	status, data, err := c.roundTrip(ctx, op, method, target, body)
	c.metrics.observe(op, resource, status, time.Since(start))
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		c.logger.Debug("request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	c.logger.Debug("request", fields...)
	return data, nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, target string, body any) (int, any, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return 0, nil, fmt.Errorf("%s: %w", op, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &types.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, &types.NetworkError{Op: op, Err: err}
	}

	payload, decodeErr := decode(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, &types.BackendError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, payload)}
	}
	if decodeErr != nil {
		return resp.StatusCode, nil, &types.BackendError{Status: resp.StatusCode, Message: "malformed response body"}
	}
	return resp.StatusCode, unwrap(payload), nil
}

// decode parses a JSON body. An empty body decodes to nil.
func decode(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// unwrap returns the _data member of an envelope. A login envelope carries
// its token beside _data and is returned whole. An acknowledgement holding
// only underscore keys, such as {"_message": "..."}, carries no record and
// unwraps to nil.
func unwrap(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if _, hasToken := m[keyToken]; hasToken {
		return v
	}
	if data, ok := m[keyData]; ok {
		return data
	}
	if envelopeOnly(m) {
		return nil
	}
	return v
}

func envelopeOnly(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "_") {
			return false
		}
	}
	return true
}

func errorMessage(status int, payload any) string {
	if m, ok := payload.(map[string]any); ok {
		for _, k := range []string{keyMessage, keyFallback} {
			if s, ok := m[k].(string); ok && s != "" {
				return s
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "status " + strconv.Itoa(status)
}

func asRecord(data any) (types.Record, error) {
	if data == nil {
		return nil, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, &types.BackendError{Status: http.StatusOK, Message: "expected a record object"}
	}
	return types.Record(m), nil
}

// IsUnauthorized reports whether err means the token is missing, expired or
// rejected.
func IsUnauthorized(err error) bool {
	return errors.Is(err, types.ErrUnauthorized)
}

var _ types.Backend = (*Client)(nil)
