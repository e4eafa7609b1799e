// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package identity

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/remote"
	"github.com/tomtom215/elevation-loom/internal/store"
)

type mockAuth struct {
	mu         sync.Mutex
	signInErr  error
	refreshErr error
	signIns    int
	refreshes  int
	ttl        time.Duration
}

func (m *mockAuth) SignInAnonymously(context.Context) (remote.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signIns++
	if m.signInErr != nil {
		return remote.Session{}, m.signInErr
	}
	return remote.Session{UserID: "anon-1", Token: "tok-signin", ExpiresAt: time.Now().Add(m.ttl)}, nil
}

func (m *mockAuth) Refresh(_ context.Context, token string) (remote.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	if m.refreshErr != nil {
		return remote.Session{}, m.refreshErr
	}
	return remote.Session{UserID: "anon-1", Token: "tok-refresh", ExpiresAt: time.Now().Add(m.ttl)}, nil
}

func (m *mockAuth) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signIns, m.refreshes
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func identityConfig() config.IdentityConfig {
	return config.IdentityConfig{RetryInterval: 20 * time.Millisecond, RefreshBefore: time.Minute}
}

func TestMaintainSignsInAndPersists(t *testing.T) {
	s := openStore(t)
	auth := &mockAuth{ttl: time.Hour}
	g := NewGate(s, auth, identityConfig())

	if g.IsReady() {
		t.Fatal("new gate must not be ready")
	}
	if _, err := g.Session(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Session() err = %v", err)
	}

	wait := g.Maintain(context.Background())
	if !g.IsReady() {
		t.Fatal("gate should be ready after sign-in")
	}
	if wait < 50*time.Minute {
		t.Errorf("next maintenance in %v, expected close to expiry minus refresh window", wait)
	}
	if g.UserID() != "anon-1" {
		t.Errorf("UserID = %q", g.UserID())
	}

	var persisted remote.Session
	found, err := s.Get(context.Background(), SessionKey, &persisted)
	if err != nil || !found || persisted.Token != "tok-signin" {
		t.Errorf("persisted = %+v, found=%v err=%v", persisted, found, err)
	}

	// A second gate on the same store starts ready without signing in.
	auth2 := &mockAuth{ttl: time.Hour}
	g2 := NewGate(s, auth2, identityConfig())
	if err := g2.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer g2.Stop()
	if !g2.IsReady() {
		t.Error("persisted session should make the gate ready immediately")
	}
	if n, _ := auth2.counts(); n != 0 {
		t.Errorf("unexpected sign-in count %d", n)
	}
}

func TestMaintainRefreshesNearExpiry(t *testing.T) {
	auth := &mockAuth{ttl: 30 * time.Second} // inside the 1 minute refresh window
	g := NewGate(openStore(t), auth, identityConfig())

	g.Maintain(context.Background())
	g.Maintain(context.Background())

	signIns, refreshes := auth.counts()
	if signIns != 1 || refreshes != 1 {
		t.Errorf("signIns=%d refreshes=%d, want 1/1", signIns, refreshes)
	}
	sess, _ := g.Session(context.Background())
	if sess.Token != "tok-refresh" {
		t.Errorf("token = %q", sess.Token)
	}
}

func TestMaintainRetriesAfterFailure(t *testing.T) {
	auth := &mockAuth{ttl: time.Hour, signInErr: errors.New("offline")}
	g := NewGate(openStore(t), auth, identityConfig())

	if wait := g.Maintain(context.Background()); wait != 20*time.Millisecond {
		t.Errorf("retry wait = %v", wait)
	}
	if g.IsReady() {
		t.Error("gate must stay not ready")
	}
}

func TestUnauthorizedRefreshFallsBackToSignIn(t *testing.T) {
	auth := &mockAuth{ttl: time.Hour}
	g := NewGate(openStore(t), auth, identityConfig())
	g.Maintain(context.Background())

	auth.mu.Lock()
	auth.refreshErr = &remote.RemoteError{Op: "refresh", StatusCode: http.StatusUnauthorized}
	auth.mu.Unlock()

	g.Invalidate()
	if g.IsReady() {
		t.Fatal("Invalidate should drop readiness")
	}
	g.Maintain(context.Background())

	signIns, refreshes := auth.counts()
	if signIns != 2 || refreshes != 1 {
		t.Errorf("signIns=%d refreshes=%d, want 2/1", signIns, refreshes)
	}
	if !g.IsReady() {
		t.Error("gate should be ready after re-sign-in")
	}
}

func TestWaitUntilReady(t *testing.T) {
	t.Run("times out", func(t *testing.T) {
		auth := &mockAuth{signInErr: errors.New("offline")}
		g := NewGate(openStore(t), auth, identityConfig())

		start := time.Now()
		err := g.WaitUntilReady(context.Background(), 50*time.Millisecond)
		if !errors.Is(err, ErrAuthTimeout) {
			t.Fatalf("expected ErrAuthTimeout, got %v", err)
		}
		if time.Since(start) < 40*time.Millisecond {
			t.Error("returned before the timeout")
		}
	})

	t.Run("wakes when the loop signs in", func(t *testing.T) {
		auth := &mockAuth{ttl: time.Hour}
		g := NewGate(openStore(t), auth, identityConfig())
		if err := g.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		defer g.Stop()

		if err := g.WaitUntilReady(context.Background(), 2*time.Second); err != nil {
			t.Fatalf("WaitUntilReady: %v", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		g := NewGate(openStore(t), &mockAuth{signInErr: errors.New("x")}, identityConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := g.WaitUntilReady(ctx, time.Second); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("repeated invalidate keeps waiters", func(t *testing.T) {
		auth := &mockAuth{ttl: time.Hour}
		g := NewGate(openStore(t), auth, identityConfig())
		g.Maintain(context.Background())
		g.Invalidate()

		done := make(chan error, 1)
		start := time.Now()
		go func() { done <- g.WaitUntilReady(context.Background(), 2*time.Second) }()
		time.Sleep(20 * time.Millisecond)

		// A second rejection before the new sign-in lands.
		g.Invalidate()
		g.Maintain(context.Background())

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("WaitUntilReady: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("waiter not woken by the sign-in after a second Invalidate")
		}
		if time.Since(start) > time.Second {
			t.Errorf("waiter took %v", time.Since(start))
		}
	})

	t.Run("clock expiry re-arms", func(t *testing.T) {
		now := time.Now()
		var mu sync.Mutex
		clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
		auth := &mockAuth{ttl: time.Hour}
		g := NewGate(openStore(t), auth, identityConfig(), WithClock(clock))
		g.Maintain(context.Background())

		mu.Lock()
		now = now.Add(2 * time.Hour)
		mu.Unlock()

		if err := g.WaitUntilReady(context.Background(), 30*time.Millisecond); !errors.Is(err, ErrAuthTimeout) {
			t.Errorf("expired session must not count as ready, got %v", err)
		}
	})
}

func TestStartStop(t *testing.T) {
	g := NewGate(openStore(t), &mockAuth{ttl: time.Hour}, identityConfig())
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !g.IsRunning() {
		t.Error("IsRunning = false")
	}
	g.Stop()
	g.Stop()
	if g.IsRunning() {
		t.Error("IsRunning = true after Stop")
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "anon-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("any-secret-works-for-unverified-parse"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := tokenExpiry(signed)
	if err != nil || !got.Equal(exp) {
		t.Errorf("tokenExpiry = %v, %v; want %v", got, err, exp)
	}
	if _, err := tokenExpiry("not-a-jwt"); err == nil {
		t.Error("expected parse error")
	}

	// Sessions without an explicit expiry take it from the token.
	g := NewGate(openStore(t), &mockAuth{}, identityConfig())
	if err := g.adopt(context.Background(), remote.Session{UserID: "anon-1", Token: signed}); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	if !g.IsReady() {
		t.Error("adopted session should be ready")
	}
}
