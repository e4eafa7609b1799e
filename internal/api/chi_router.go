// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/elevation-loom/internal/auth"
	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/middleware"
	"github.com/tomtom215/elevation-loom/internal/websocket"
)

// Router wires the handler into chi.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router using the handler's security settings.
func NewRouter(h *Handler) *Router {
	return &Router{
		handler:       h,
		chiMiddleware: NewChiMiddleware(ChiMiddlewareConfigFrom(h.security)),
	}
}

// SetupChi builds the route tree.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(auth.SecurityHeaders)
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(auth.SecurityHeaders)
		r.Use(middleware.PrometheusMetrics)

		r.Get("/weeks", h.ListWeeks)
		r.Get("/weeks/{weekKey}", h.GetWeek)
		r.Put("/weeks/{weekKey}/target", h.SetTarget)
		r.Post("/weeks/{weekKey}/sync", h.QueueWeek)

		r.Get("/daily-logs/{date}", h.GetDailyLog)
		r.Put("/daily-logs/{date}", h.SaveDailyLog)
		r.Delete("/daily-logs/{date}", h.DeleteDailyLog)
		r.Put("/daily-logs/{date}/plan/{part}", h.SaveDailyPlan)

		r.Post("/sync", h.TriggerSync)
		r.Get("/sync/status", h.GetSyncStatus)
		r.Get("/sync/pending", h.GetPendingCount)
		r.Delete("/sync/pending", h.ClearPending)

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.HandleListBackups)
			r.Post("/", h.HandleCreateBackup)
			r.Post("/upload", h.HandleUploadBackup)
			r.Get("/{id}", h.HandleGetBackup)
			r.Delete("/{id}", h.HandleDeleteBackup)
			r.Get("/{id}/download", h.HandleDownloadBackup)
			r.Post("/{id}/verify", h.HandleVerifyBackup)
		})
	})

	if h.hub != nil {
		r.Get("/ws", websocket.Handler(h.hub, router.chiMiddleware.CheckOrigin()))
	}
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})
	return r
}

// HTTPServer wraps the routes in an *http.Server. WriteTimeout is left
// unset so websocket connections and backup downloads are not cut off.
func (router *Router) HTTPServer(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Timeout,
		IdleTimeout:       2 * time.Minute,
	}
}
