// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/elevation-loom/internal/backup"
	"github.com/tomtom215/elevation-loom/internal/cache"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/validation"
)

// respondCacheError maps a cache failure to a status. Storage failures
// are 500; anything else the cache rejects is bad input.
func respondCacheError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, cache.ErrNoDailyLog):
		rw.NotFound(err.Error())
	case errors.Is(err, cache.ErrCache):
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Local storage failure")
		rw.Error(http.StatusInternalServerError, ErrCodeStorageError, "local storage failure")
	default:
		rw.BadRequest(err.Error())
	}
}

func respondBackupError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, backup.ErrNotFound):
		rw.NotFound(err.Error())
	case errors.Is(err, backup.ErrDisabled):
		rw.ServiceUnavailable("backups are disabled")
	case errors.Is(err, backup.ErrChecksumMismatch):
		rw.Error(http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		rw.InternalError("backup operation failed", err)
	}
}

func respondValidation(rw *ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	rw.ValidationError(apiErr.Message, apiErr.Details)
}
