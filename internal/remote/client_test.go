// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/models"
)

// staticTokens is a TokenSource returning a fixed session.
type staticTokens struct {
	mu          sync.Mutex
	sess        Session
	err         error
	invalidated int
}

func (s *staticTokens) Session(context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess, s.err
}

func (s *staticTokens) Invalidate() {
	s.mu.Lock()
	s.invalidated++
	s.mu.Unlock()
}

func testConfig(url string) config.RemoteConfig {
	return config.RemoteConfig{
		BaseURL:        url,
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 5 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, h http.Handler) (*Client, *staticTokens) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	tokens := &staticTokens{sess: Session{UserID: "user-1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}}
	return NewClient(testConfig(server.URL), WithTokenSource(tokens)), tokens
}

func samplePayload() models.WeekPayload {
	return models.WeekPayload{
		IsoYear: 2026, IsoWeek: 7, Target: models.Target{Value: 3000},
		DailyLogs: []models.DailyLog{{Date: "2026-02-10", ElevationPart1: models.IntPtr(500)}},
	}
}

func TestPushSendsWeekDocument(t *testing.T) {
	var gotPath, gotAuth, gotMethod string
	var gotBody models.WeekPayload
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth, gotMethod = r.URL.Path, r.Header.Get("Authorization"), r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))

	if err := client.Push(context.Background(), samplePayload()); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %s", gotMethod)
	}
	if gotPath != "/v1/users/user-1/weeks/2026-W07" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Target.Value != 3000 || len(gotBody.DailyLogs) != 1 {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestPushErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantTemporary bool
		wantMessage   string
	}{
		{"server error", http.StatusInternalServerError, "", true, ""},
		{"bad gateway", http.StatusBadGateway, "", true, ""},
		{"validation", http.StatusBadRequest, `{"success":false,"error":{"code":"VALIDATION_ERROR","message":"isoWeek must be at most 53"}}`, false, "isoWeek must be at most 53"},
		{"forbidden", http.StatusForbidden, "not yours", false, "not yours"},
		{"unauthorized", http.StatusUnauthorized, "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			err := client.Push(context.Background(), samplePayload())
			var re *RemoteError
			if !errors.As(err, &re) {
				t.Fatalf("expected *RemoteError, got %v", err)
			}
			if !errors.Is(err, ErrRemote) {
				t.Error("errors.Is(err, ErrRemote) = false")
			}
			if re.StatusCode != tt.status {
				t.Errorf("StatusCode = %d", re.StatusCode)
			}
			if re.Temporary() != tt.wantTemporary {
				t.Errorf("Temporary() = %v", re.Temporary())
			}
			if re.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", re.Message, tt.wantMessage)
			}
		})
	}
}

func TestPushUnauthorizedInvalidatesSession(t *testing.T) {
	client, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := client.Push(context.Background(), samplePayload())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if tokens.invalidated != 1 {
		t.Errorf("Invalidate called %d times", tokens.invalidated)
	}
}

func TestPushWithoutIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	if err := client.Push(context.Background(), samplePayload()); !errors.Is(err, ErrNoIdentity) {
		t.Errorf("expected ErrNoIdentity, got %v", err)
	}

	client.SetTokenSource(&staticTokens{err: errors.New("signed out")})
	if err := client.Push(context.Background(), samplePayload()); err == nil {
		t.Error("expected identity error")
	}
}

func TestRateLimitRetry(t *testing.T) {
	t.Run("retries then succeeds", func(t *testing.T) {
		var attempts atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))

		if err := client.Push(context.Background(), samplePayload()); err != nil {
			t.Fatalf("Push() error = %v", err)
		}
		if attempts.Load() != 3 {
			t.Errorf("attempts = %d, want 3", attempts.Load())
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var attempts atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))

		err := client.Push(context.Background(), samplePayload())
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		if attempts.Load() != 4 {
			t.Errorf("attempts = %d, want 4 (1 + 3 retries)", attempts.Load())
		}
	})

	t.Run("honours Retry-After", func(t *testing.T) {
		var attempts atomic.Int32
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) == 1 {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))

		start := time.Now()
		if err := client.Push(context.Background(), samplePayload()); err != nil {
			t.Fatalf("Push() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
			t.Errorf("Retry-After ignored, elapsed %v", elapsed)
		}
	})

	t.Run("context cancelled while waiting", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		}))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err := client.Push(ctx, samplePayload())
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline error, got %v", err)
		}
	})
}

func TestTransportFailureIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(testConfig(url), WithTokenSource(&staticTokens{sess: Session{UserID: "u", Token: "t"}}))
	err := client.Push(context.Background(), samplePayload())
	var re *RemoteError
	if !errors.As(err, &re) || re.StatusCode != 0 {
		t.Fatalf("expected transport RemoteError, got %v", err)
	}
	if !IsTemporary(err) {
		t.Error("transport failures must be temporary")
	}
}

func TestFetch(t *testing.T) {
	updated := time.Date(2026, 2, 11, 8, 0, 0, 0, time.UTC)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/users/user-1/weeks/2026-W08" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(Document{
			UserID: "user-1", WeekKey: "2026-W07", Payload: samplePayload(), UpdatedAt: updated,
		})
	}))

	doc, found, err := client.Fetch(context.Background(), 2026, 7)
	if err != nil || !found {
		t.Fatalf("Fetch() = %v, %v", found, err)
	}
	if !doc.UpdatedAt.Equal(updated) || doc.Payload.Target.Value != 3000 {
		t.Errorf("doc = %+v", doc)
	}

	_, found, err = client.Fetch(context.Background(), 2026, 8)
	if err != nil || found {
		t.Errorf("missing week: found=%v err=%v", found, err)
	}
}

func TestSignInAndRefresh(t *testing.T) {
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	var refreshAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/anonymous":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(Session{UserID: "anon-1", Token: "t1", ExpiresAt: exp})
		case "/v1/auth/refresh":
			refreshAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(Session{UserID: "anon-1", Token: "t2", ExpiresAt: exp})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	sess, err := client.SignInAnonymously(context.Background())
	if err != nil {
		t.Fatalf("SignInAnonymously() error = %v", err)
	}
	if sess.UserID != "anon-1" || sess.Token != "t1" || !sess.ExpiresAt.Equal(exp) {
		t.Errorf("session = %+v", sess)
	}
	if !sess.Valid(time.Now()) || sess.Valid(exp.Add(time.Second)) {
		t.Error("Valid() wrong around expiry")
	}

	refreshed, err := client.Refresh(context.Background(), sess.Token)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.Token != "t2" || refreshAuth != "Bearer t1" {
		t.Errorf("refresh = %+v, auth = %q", refreshed, refreshAuth)
	}
}

func TestHealth(t *testing.T) {
	healthy := atomic.Bool{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" || !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.Health(context.Background(), ""); err == nil {
		t.Error("expected unhealthy")
	}
	healthy.Store(true)
	if err := client.Health(context.Background(), "/healthz"); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"", 0, false},
		{"5", 5 * time.Second, true},
		{" 2 ", 2 * time.Second, true},
		{now.Add(3 * time.Second).Format(http.TimeFormat), 3 * time.Second, true},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseRetryAfter(tt.in, now)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseRetryAfter(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClientSideThrottle(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RequestsPerSecond = 1
	cfg.Burst = 1
	client := NewClient(cfg, WithTokenSource(&staticTokens{sess: Session{UserID: "u", Token: "t"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = client.Push(ctx, samplePayload())
	err := client.Push(ctx, samplePayload())
	if err == nil {
		t.Fatal("second push should wait past the deadline")
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}
