// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package remotestore

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/elevation-loom/internal/auth"
	"github.com/tomtom215/elevation-loom/internal/logging"
)

// Error codes in the error envelope.
const (
	codeBadRequest       = "BAD_REQUEST"
	codeValidation       = "VALIDATION_ERROR"
	codeUnauthorized     = "UNAUTHORIZED"
	codeForbidden        = "FORBIDDEN"
	codeNotFound         = "NOT_FOUND"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeRateLimited      = "TOO_MANY_REQUESTS"
	codeInternal         = "INTERNAL_ERROR"
)

type errorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// writeJSON writes v as the raw response body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeErrorDetails(w, r, status, code, message, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	writeJSON(w, r, status, errorEnvelope{
		Success: false,
		Error:   errorBody{Code: code, Message: message, Details: details},
	})
}

// authError renders auth middleware failures in the envelope.
func authError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := "invalid token"
	if errors.Is(err, auth.ErrMissingToken) {
		msg = "missing bearer token"
	}
	writeError(w, r, status, codeUnauthorized, msg)
}
