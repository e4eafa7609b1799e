// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package remotestore is the reference remote store: a small HTTP service
// that issues anonymous identities and keeps one document per user and
// ISO week. It is what the remote client talks to.
package remotestore

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/elevation-loom/internal/auth"
	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/middleware"
	"github.com/tomtom215/elevation-loom/internal/store"
)

const (
	docPrefix  = "doc:"
	userPrefix = "user:"

	// refreshGrace is how long after expiry a token may still be refreshed.
	refreshGrace = 30 * 24 * time.Hour

	maxBodyBytes = 64 << 10
)

// Server serves the remote store API.
type Server struct {
	store *store.Store
	jwt   *auth.JWTManager
	sec   config.SecurityConfig
	now   func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides time.Now for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a Server over s.
func NewServer(s *store.Store, jwt *auth.JWTManager, sec config.SecurityConfig, opts ...Option) *Server {
	srv := &Server{store: s, jwt: jwt, sec: sec, now: time.Now}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(auth.SecurityHeaders)

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		if !s.sec.RateLimitDisabled && s.sec.RateLimitReqs > 0 {
			r.Use(httprate.Limit(
				s.sec.RateLimitReqs,
				s.sec.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, r, http.StatusTooManyRequests, codeRateLimited, "too many requests")
				}),
			))
		}

		r.Post("/auth/anonymous", s.signInAnonymously)
		r.Post("/auth/refresh", s.refresh)

		authMW := auth.NewMiddleware(s.jwt, authError)
		r.With(authMW.Authenticate).Put("/users/{uid}/weeks/{weekKey}", s.putWeek)
		r.With(authMW.Authenticate).Get("/users/{uid}/weeks/{weekKey}", s.getWeek)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})
	return r
}

// HTTPServer wraps the router in an *http.Server configured from cfg.
func (s *Server) HTTPServer(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       2 * time.Minute,
	}
}

func docKey(uid, weekKey string) string {
	return docPrefix + uid + ":" + weekKey
}

func userKey(uid string) string {
	return userPrefix + uid
}

// CountDocuments returns the number of stored week documents.
func (s *Server) CountDocuments(context.Context) (int, error) {
	return s.store.CountPrefix(docPrefix)
}
