// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/elevation-loom/internal/aggregate"
	"github.com/tomtom215/elevation-loom/internal/cache"
	"github.com/tomtom215/elevation-loom/internal/isoweek"
	"github.com/tomtom215/elevation-loom/internal/models"
)

// WeekView is a stored week with its computed figures.
type WeekView struct {
	Week    models.WeekData   `json:"week"`
	Summary aggregate.Summary `json:"summary"`
}

func newWeekView(w models.WeekData) WeekView {
	if w.DailyLogs == nil {
		w.DailyLogs = []models.DailyLog{}
	}
	return WeekView{Week: w, Summary: aggregate.Summarize(w)}
}

// ListWeeks returns every stored week.
func (h *Handler) ListWeeks(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	weeks, err := h.engine.Cache().ListWeeks(r.Context())
	if err != nil {
		respondCacheError(rw, err)
		return
	}
	views := make([]WeekView, 0, len(weeks))
	for _, wk := range weeks {
		views = append(views, newWeekView(wk))
	}
	rw.List(views, len(views))
}

// GetWeek returns one week. Missing weeks come back as the empty sentinel.
func (h *Handler) GetWeek(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	year, week, ok := weekParam(rw, r)
	if !ok {
		return
	}
	wk, err := h.engine.Cache().Load(r.Context(), year, week)
	if err != nil {
		respondCacheError(rw, err)
		return
	}
	rw.Success(newWeekView(wk))
}

// SetTarget replaces a week's target, keeping its daily logs.
func (h *Handler) SetTarget(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	year, week, ok := weekParam(rw, r)
	if !ok {
		return
	}
	var req TargetRequest
	if !decodeAndValidate(w, r, rw, &req) {
		return
	}
	wk, err := h.engine.Cache().SetTarget(r.Context(), year, week, *req.Value)
	if err != nil {
		respondCacheError(rw, err)
		return
	}
	h.notifyPending(r.Context())
	rw.Success(newWeekView(wk))
}

// GetDailyLog returns the record for {date}.
func (h *Handler) GetDailyLog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	date := chi.URLParam(r, "date")
	log, err := h.engine.Cache().GetDailyLog(r.Context(), date)
	if err != nil {
		respondCacheError(rw, err)
		return
	}
	if log == nil {
		rw.NotFound("no daily log for " + date)
		return
	}
	rw.Success(log)
}

// SaveDailyLog upserts the elevation and condition for {date}.
func (h *Handler) SaveDailyLog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req DailyLogRequest
	if !decodeAndValidate(w, r, rw, &req) {
		return
	}
	cond, err := models.ParseCondition(req.SubjectiveCondition)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	wk, err := h.engine.Cache().SaveDailyLog(r.Context(), cache.DailyLogInput{
		Date:      chi.URLParam(r, "date"),
		Part1:     req.ElevationPart1,
		Part2:     req.ElevationPart2,
		Condition: cond,
		Timezone:  req.Timezone,
	})
	if err != nil {
		respondCacheError(rw, err)
		return
	}
	h.notifyPending(r.Context())
	rw.Success(newWeekView(wk))
}

// SaveDailyPlan sets plan part {part} (1 or 2) for {date}.
func (h *Handler) SaveDailyPlan(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var part cache.PlanPart
	switch chi.URLParam(r, "part") {
	case "1":
		part = cache.PlanPart1
	case "2":
		part = cache.PlanPart2
	default:
		rw.BadRequest("plan part must be 1 or 2")
		return
	}
	var req PlanRequest
	if !decodeAndValidate(w, r, rw, &req) {
		return
	}
	wk, err := h.engine.Cache().SaveDailyPlan(r.Context(), chi.URLParam(r, "date"), part, req.Value)
	if err != nil {
		respondCacheError(rw, err)
		return
	}
	h.notifyPending(r.Context())
	rw.Success(newWeekView(wk))
}

// DeleteDailyLog removes the record for {date}.
func (h *Handler) DeleteDailyLog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	wk, err := h.engine.Cache().DeleteDailyLog(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		respondCacheError(rw, err)
		return
	}
	h.notifyPending(r.Context())
	rw.Success(newWeekView(wk))
}

func weekParam(rw *ResponseWriter, r *http.Request) (year, week int, ok bool) {
	year, week, err := isoweek.ParseWeekKey(chi.URLParam(r, "weekKey"))
	if err != nil {
		rw.BadRequest(err.Error())
		return 0, 0, false
	}
	return year, week, true
}
