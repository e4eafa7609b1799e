// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package remotestore

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/elevation-loom/internal/auth"
	"github.com/tomtom215/elevation-loom/internal/isoweek"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
	"github.com/tomtom215/elevation-loom/internal/models"
	"github.com/tomtom215/elevation-loom/internal/remote"
	"github.com/tomtom215/elevation-loom/internal/validation"
)

// userRecord is kept per anonymous user so refresh can reject unknown IDs.
type userRecord struct {
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"createdAt"`
	LastSeen  time.Time `json:"lastSeen"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// signInAnonymously creates a user and returns its first session.
func (s *Server) signInAnonymously(w http.ResponseWriter, r *http.Request) {
	uid := auth.NewAnonymousUserID()
	now := s.now().UTC()
	if err := s.store.Set(r.Context(), userKey(uid), userRecord{UID: uid, CreatedAt: now, LastSeen: now}); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to create anonymous user")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "could not create user")
		return
	}
	s.issue(w, r, uid, http.StatusCreated)
	logging.Ctx(r.Context()).Info().Str("uid", uid).Msg("Anonymous user created")
}

// refresh exchanges a token, possibly recently expired, for a fresh one.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	token, err := auth.BearerToken(r)
	if err != nil {
		authError(w, r, http.StatusUnauthorized, err)
		return
	}
	claims, err := s.jwt.ValidateForRefresh(token, refreshGrace)
	if err != nil {
		authError(w, r, http.StatusUnauthorized, err)
		return
	}

	uid := claims.UserID()
	var user userRecord
	found, err := s.store.Get(r.Context(), userKey(uid), &user)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, codeInternal, "could not read user")
		return
	}
	if !found {
		writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "unknown user")
		return
	}
	user.LastSeen = s.now().UTC()
	if err := s.store.Set(r.Context(), userKey(uid), user); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("uid", uid).Msg("Could not update last seen")
	}
	s.issue(w, r, uid, http.StatusOK)
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, uid string, status int) {
	token, exp, err := s.jwt.GenerateToken(uid)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to sign token")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "could not issue token")
		return
	}
	writeJSON(w, r, status, remote.Session{UserID: uid, Token: token, ExpiresAt: exp})
}

// pathWeek checks the caller owns {uid} and that {weekKey} is a valid ISO week.
func pathWeek(w http.ResponseWriter, r *http.Request) (uid string, year, week int, ok bool) {
	uid = chi.URLParam(r, "uid")
	claims, hasClaims := auth.ClaimsFromContext(r.Context())
	if !hasClaims || claims.UserID() != uid {
		writeError(w, r, http.StatusForbidden, codeForbidden, "token does not belong to this user")
		return "", 0, 0, false
	}
	year, week, err := isoweek.ParseWeekKey(chi.URLParam(r, "weekKey"))
	if err == nil {
		err = isoweek.Validate(year, week)
	}
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
		return "", 0, 0, false
	}
	return uid, year, week, true
}

// putWeek replaces the user's document for the week. Last writer wins.
func (s *Server) putWeek(w http.ResponseWriter, r *http.Request) {
	uid, year, week, ok := pathWeek(w, r)
	if !ok {
		return
	}
	weekKey := models.WeekKey(year, week)

	var payload models.WeekPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		metrics.RemoteStoreWrites.WithLabelValues("rejected").Inc()
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}
	if payload.Key() != weekKey {
		metrics.RemoteStoreWrites.WithLabelValues("rejected").Inc()
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "payload week does not match path")
		return
	}
	if verr := validation.ValidateWeekPayload(&payload); verr != nil {
		metrics.RemoteStoreWrites.WithLabelValues("rejected").Inc()
		apiErr := verr.ToAPIError()
		writeErrorDetails(w, r, http.StatusBadRequest, codeValidation, apiErr.Message, apiErr.Details)
		return
	}
	if payload.DailyLogs == nil {
		payload.DailyLogs = []models.DailyLog{}
	}

	doc := remote.Document{
		UserID:    uid,
		WeekKey:   weekKey,
		Payload:   payload,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.Set(r.Context(), docKey(uid, weekKey), doc); err != nil {
		metrics.RemoteStoreWrites.WithLabelValues("error").Inc()
		logging.Ctx(r.Context()).Error().Err(err).Str("week", weekKey).Msg("Failed to store week document")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "could not store document")
		return
	}
	metrics.RemoteStoreWrites.WithLabelValues("stored").Inc()
	logging.Ctx(r.Context()).Debug().Str("uid", uid).Str("week", weekKey).Msg("Week document stored")
	writeJSON(w, r, http.StatusOK, doc)
}

func (s *Server) getWeek(w http.ResponseWriter, r *http.Request) {
	uid, year, week, ok := pathWeek(w, r)
	if !ok {
		return
	}
	weekKey := models.WeekKey(year, week)

	var doc remote.Document
	found, err := s.store.Get(r.Context(), docKey(uid, weekKey), &doc)
	switch {
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Str("week", weekKey).Msg("Failed to read week document")
		writeError(w, r, http.StatusInternalServerError, codeInternal, "could not read document")
	case !found:
		writeError(w, r, http.StatusNotFound, codeNotFound, "no document for "+weekKey)
	default:
		writeJSON(w, r, http.StatusOK, doc)
	}
}
