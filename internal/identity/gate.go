// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package identity keeps the device signed in to the remote store as an
// anonymous user and tells the sync scheduler when credentials are usable.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
	"github.com/tomtom215/elevation-loom/internal/remote"
	"github.com/tomtom215/elevation-loom/internal/store"
)

// SessionKey is the store key of the persisted session.
const SessionKey = "identity:session"

var (
	// ErrAuthTimeout is returned by WaitUntilReady when no usable session
	// appeared within the timeout.
	ErrAuthTimeout = errors.New("identity not ready before timeout")

	// ErrNotReady is returned by Session when there is no valid session.
	ErrNotReady = errors.New("identity not ready")
)

// Authenticator obtains sessions from the remote store.
type Authenticator interface {
	SignInAnonymously(ctx context.Context) (remote.Session, error)
	Refresh(ctx context.Context, token string) (remote.Session, error)
}

// Gate owns the anonymous session. A background loop signs in, refreshes
// before expiry and retries on failure; callers only observe readiness.
type Gate struct {
	store *store.Store
	auth  Authenticator
	cfg   config.IdentityConfig
	now   func() time.Time

	mu      sync.RWMutex
	sess    remote.Session
	readyCh chan struct{} // closed while sess is valid
	wake    chan struct{}

	// lifecycle
	lifeMu   sync.Mutex
	running  bool
	cancel   context.CancelFunc
	stopDone chan struct{}
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a Gate. Call Start to begin signing in.
func NewGate(s *store.Store, auth Authenticator, cfg config.IdentityConfig, opts ...Option) *Gate {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 10 * time.Second
	}
	g := &Gate{
		store:   s,
		auth:    auth,
		cfg:     cfg,
		now:     time.Now,
		readyCh: make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsReady reports whether a non-expired session is held.
func (g *Gate) IsReady() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sess.Valid(g.now())
}

// WaitUntilReady blocks until the gate is ready, the timeout elapses
// (ErrAuthTimeout) or ctx is done.
func (g *Gate) WaitUntilReady(ctx context.Context, timeout time.Duration) error {
	g.mu.Lock()
	if g.sess.Valid(g.now()) {
		g.mu.Unlock()
		return nil
	}
	// The session expired by the clock; re-arm the ready signal.
	select {
	case <-g.readyCh:
		g.readyCh = make(chan struct{})
		metrics.SetIdentityReady(false)
	default:
	}
	ch := g.readyCh
	g.mu.Unlock()

	g.kick()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		return ErrAuthTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session returns the current session, or ErrNotReady.
func (g *Gate) Session(context.Context) (remote.Session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.sess.Valid(g.now()) {
		return remote.Session{}, ErrNotReady
	}
	return g.sess, nil
}

// UserID returns the anonymous user ID, valid or not. Empty before the
// first sign-in.
func (g *Gate) UserID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sess.UserID
}

// Invalidate marks the session expired after the remote rejected it and
// wakes the loop to re-authenticate.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	if g.sess.Token != "" {
		g.sess.ExpiresAt = time.Time{}
		// Replace the signal only once it has fired; waiters parked on an
		// open channel must be woken by the next sign-in.
		select {
		case <-g.readyCh:
			g.readyCh = make(chan struct{})
		default:
		}
		metrics.SetIdentityReady(false)
		logging.Warn().Str("uid", g.sess.UserID).Msg("Session rejected by remote store, re-authenticating")
	}
	g.mu.Unlock()
	g.kick()
}

func (g *Gate) kick() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// Start loads any persisted session and launches the maintenance loop.
func (g *Gate) Start(ctx context.Context) error {
	g.lifeMu.Lock()
	defer g.lifeMu.Unlock()
	if g.running {
		return nil
	}

	if err := g.loadPersisted(ctx); err != nil {
		logging.Warn().Err(err).Msg("Could not load persisted session")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.stopDone = make(chan struct{})
	g.running = true
	go g.run(loopCtx, g.stopDone)

	logging.Info().Bool("ready", g.IsReady()).Msg("Identity gate started")
	return nil
}

// Stop halts the loop and waits for it to exit.
func (g *Gate) Stop() {
	g.lifeMu.Lock()
	if !g.running {
		g.lifeMu.Unlock()
		return
	}
	g.running = false
	g.cancel()
	done := g.stopDone
	g.lifeMu.Unlock()

	<-done
	logging.Info().Msg("Identity gate stopped")
}

// IsRunning reports whether the loop is active.
func (g *Gate) IsRunning() bool {
	g.lifeMu.Lock()
	defer g.lifeMu.Unlock()
	return g.running
}

func (g *Gate) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		wait := g.Maintain(ctx)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-g.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Maintain performs one maintenance step (sign in, refresh or nothing)
// and returns how long to wait before the next one.
func (g *Gate) Maintain(ctx context.Context) time.Duration {
	g.mu.RLock()
	sess := g.sess
	g.mu.RUnlock()
	now := g.now()

	switch {
	case sess.Valid(now) && sess.ExpiresAt.Sub(now) > g.cfg.RefreshBefore:
		// nothing to do
	case sess.Token != "":
		if err := g.refresh(ctx, sess.Token); err != nil {
			if !sess.Valid(now) || errors.Is(err, remote.ErrUnauthorized) {
				if err := g.signIn(ctx); err != nil {
					return g.cfg.RetryInterval
				}
			} else {
				return g.cfg.RetryInterval
			}
		}
	default:
		if err := g.signIn(ctx); err != nil {
			return g.cfg.RetryInterval
		}
	}

	g.mu.RLock()
	refreshAt := g.sess.ExpiresAt.Add(-g.cfg.RefreshBefore)
	g.mu.RUnlock()
	wait := refreshAt.Sub(g.now())
	if wait < g.cfg.RetryInterval {
		wait = g.cfg.RetryInterval
	}
	return wait
}

func (g *Gate) signIn(ctx context.Context) error {
	sess, err := g.auth.SignInAnonymously(ctx)
	metrics.RecordSignIn("sign_in", err)
	if err != nil {
		logging.Warn().Err(err).Dur("retry_in", g.cfg.RetryInterval).Msg("Anonymous sign-in failed")
		return err
	}
	if err := g.adopt(ctx, sess); err != nil {
		return err
	}
	logging.Info().Str("uid", sess.UserID).Msg("Signed in anonymously")
	return nil
}

func (g *Gate) refresh(ctx context.Context, token string) error {
	sess, err := g.auth.Refresh(ctx, token)
	metrics.RecordSignIn("refresh", err)
	if err != nil {
		logging.Warn().Err(err).Msg("Session refresh failed")
		return err
	}
	if err := g.adopt(ctx, sess); err != nil {
		return err
	}
	logging.Debug().Str("uid", sess.UserID).Time("expires_at", sess.ExpiresAt).Msg("Session refreshed")
	return nil
}

// adopt installs sess, persists it, and signals readiness.
func (g *Gate) adopt(ctx context.Context, sess remote.Session) error {
	if sess.ExpiresAt.IsZero() {
		exp, err := tokenExpiry(sess.Token)
		if err != nil {
			return fmt.Errorf("session without expiry: %w", err)
		}
		sess.ExpiresAt = exp
	}
	if !sess.Valid(g.now()) {
		return fmt.Errorf("received unusable session for %q", sess.UserID)
	}

	if err := g.store.Set(ctx, SessionKey, sess); err != nil {
		// The in-memory session still works; it is re-fetched after a restart.
		logging.Warn().Err(err).Msg("Could not persist session")
	}
	g.install(sess)
	return nil
}

func (g *Gate) install(sess remote.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sess = sess
	if g.sess.Valid(g.now()) {
		select {
		case <-g.readyCh:
		default:
			close(g.readyCh)
		}
		metrics.SetIdentityReady(true)
	}
}

func (g *Gate) loadPersisted(ctx context.Context) error {
	var sess remote.Session
	found, err := g.store.Get(ctx, SessionKey, &sess)
	if err != nil || !found {
		return err
	}
	g.install(sess)
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature; only
// the remote store can verify its own tokens.
func tokenExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
