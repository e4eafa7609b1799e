// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

/*
client.go - Remote Store HTTP Client

Endpoints (all JSON):
  - POST /v1/auth/anonymous              create an anonymous user, returns a Session
  - POST /v1/auth/refresh                exchange a valid token for a fresh Session
  - PUT  /v1/users/{uid}/weeks/{weekKey} upsert one week document
  - GET  /v1/users/{uid}/weeks/{weekKey} read one week document
  - GET  /healthz                        reachability probe

Every request waits on a client-side token bucket (x/time/rate) and goes
through doWithRateLimit, which retries HTTP 429 with exponential backoff
and honours Retry-After. No other retry happens here; the sync scheduler
owns retry policy.
*/

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
	"github.com/tomtom215/elevation-loom/internal/models"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4 << 10

// Session is an authenticated anonymous identity.
type Session struct {
	UserID    string    `json:"uid"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the session has credentials that have not expired at now.
func (s Session) Valid(now time.Time) bool {
	return s.UserID != "" && s.Token != "" && now.Before(s.ExpiresAt)
}

// Document is a week as stored remotely.
type Document struct {
	UserID    string             `json:"uid"`
	WeekKey   string             `json:"weekKey"`
	Payload   models.WeekPayload `json:"payload"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// TokenSource supplies credentials for user-scoped requests.
type TokenSource interface {
	Session(ctx context.Context) (Session, error)
	// Invalidate drops the cached session after the server rejected it.
	Invalidate()
}

// Client talks to the remote store.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration

	mu     sync.RWMutex
	tokens TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets the credential provider for Push and Fetch.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg config.RemoteConfig, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: cfg.MaxRetries,
		baseDelay:  baseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource installs ts after construction. The identity gate needs
// the client to sign in, so main wires the two in this order.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

func (c *Client) tokenSource() TokenSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// BaseURL returns the configured remote endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Push upserts the week document for the current user.
func (c *Client) Push(ctx context.Context, payload models.WeekPayload) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	path := weekPath(sess.UserID, payload.Key())

	body, err := json.Marshal(payload)
	if err != nil {
		return &RemoteError{Op: "push", Err: fmt.Errorf("encode payload: %w", err)}
	}
	return c.do(ctx, requestConfig{
		op:     "push",
		method: http.MethodPut,
		path:   path,
		body:   body,
		token:  sess.Token,
		expect: []int{http.StatusOK, http.StatusCreated, http.StatusNoContent},
	}, nil)
}

// Fetch reads the remote copy of a week. found is false on 404.
func (c *Client) Fetch(ctx context.Context, isoYear, isoWeek int) (doc Document, found bool, err error) {
	sess, err := c.session(ctx)
	if err != nil {
		return Document{}, false, err
	}
	err = c.do(ctx, requestConfig{
		op:     "fetch",
		method: http.MethodGet,
		path:   weekPath(sess.UserID, models.WeekKey(isoYear, isoWeek)),
		token:  sess.Token,
		expect: []int{http.StatusOK},
	}, &doc)
	var re *RemoteError
	if errors.As(err, &re) && re.StatusCode == http.StatusNotFound {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

// SignInAnonymously creates a new anonymous user.
func (c *Client) SignInAnonymously(ctx context.Context) (Session, error) {
	var sess Session
	err := c.do(ctx, requestConfig{
		op:     "sign_in",
		method: http.MethodPost,
		path:   "/v1/auth/anonymous",
		expect: []int{http.StatusOK, http.StatusCreated},
	}, &sess)
	return sess, err
}

// Refresh exchanges token for a fresh session of the same user.
func (c *Client) Refresh(ctx context.Context, token string) (Session, error) {
	var sess Session
	err := c.do(ctx, requestConfig{
		op:     "refresh",
		method: http.MethodPost,
		path:   "/v1/auth/refresh",
		token:  token,
		expect: []int{http.StatusOK},
	}, &sess)
	return sess, err
}

// Health probes the given path, "/healthz" when empty.
func (c *Client) Health(ctx context.Context, path string) error {
	if path == "" {
		path = "/healthz"
	}
	return c.do(ctx, requestConfig{
		op:          "health",
		method:      http.MethodGet,
		path:        path,
		expect:      []int{http.StatusOK, http.StatusNoContent},
		noRateLimit: true,
	}, nil)
}

func (c *Client) session(ctx context.Context) (Session, error) {
	ts := c.tokenSource()
	if ts == nil {
		return Session{}, ErrNoIdentity
	}
	sess, err := ts.Session(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("identity: %w", err)
	}
	return sess, nil
}

func weekPath(uid, weekKey string) string {
	return "/v1/users/" + url.PathEscape(uid) + "/weeks/" + url.PathEscape(weekKey)
}

type requestConfig struct {
	op          string
	method      string
	path        string
	body        []byte
	token       string
	expect      []int
	noRateLimit bool
}

// errorEnvelope is the error shape returned by the remote store.
type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do executes one request and decodes a successful body into result.
func (c *Client) do(ctx context.Context, cfg requestConfig, result interface{}) error {
	if !cfg.noRateLimit {
		if err := c.limiter.Wait(ctx); err != nil {
			return &RemoteError{Op: cfg.op, Err: err}
		}
	}

	start := time.Now()
	resp, err := c.doWithRateLimit(ctx, cfg)
	if err != nil {
		metrics.RecordRemoteRequest(cfg.op, 0, time.Since(start))
		return err
	}
	defer resp.Body.Close()
	metrics.RecordRemoteRequest(cfg.op, resp.StatusCode, time.Since(start))

	if !expected(resp.StatusCode, cfg.expect) {
		re := &RemoteError{Op: cfg.op, StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		if resp.StatusCode == http.StatusUnauthorized && cfg.token != "" {
			if ts := c.tokenSource(); ts != nil {
				ts.Invalidate()
			}
		}
		return re
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &RemoteError{Op: cfg.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// doWithRateLimit sends the request, retrying only on HTTP 429 with
// exponential backoff (base, 2x, 4x, ...) or the server's Retry-After.
func (c *Client) doWithRateLimit(ctx context.Context, cfg requestConfig) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := c.newRequest(ctx, cfg)
		if err != nil {
			return nil, &RemoteError{Op: cfg.op, Err: err}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &RemoteError{Op: cfg.op, Err: err}
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		metrics.RemoteRateLimited.Inc()
		retryAfter := resp.Header.Get("Retry-After")
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()

		if attempt >= c.maxRetries {
			return nil, &RemoteError{Op: cfg.op, StatusCode: http.StatusTooManyRequests, Err: ErrRateLimited}
		}

		delay := c.baseDelay * (1 << attempt)
		if d, ok := parseRetryAfter(retryAfter, time.Now()); ok {
			delay = d
		}

		logging.Warn().
			Str("op", cfg.op).
			Dur("retry_delay", delay).
			Int("attempt", attempt+1).
			Int("max_retries", c.maxRetries).
			Msg("Remote store rate limited (HTTP 429), retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &RemoteError{Op: cfg.op, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (c *Client) newRequest(ctx context.Context, cfg requestConfig) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if cfg.body != nil {
		body = bytes.NewReader(cfg.body)
	}
	req, err := http.NewRequestWithContext(ctx, cfg.method, c.baseURL+cfg.path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cfg.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cfg.token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.token)
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	return req, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func expected(status int, codes []int) bool {
	for _, c := range codes {
		if status == c {
			return true
		}
	}
	return false
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var env errorEnvelope
	if json.Unmarshal(data, &env) == nil && env.Error != nil {
		return env.Error.Message
	}
	return strings.TrimSpace(string(data))
}
