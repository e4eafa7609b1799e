// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/elevation-loom/internal/logging"
)

const maxBackupUpload = 256 << 20

// backupsAvailable writes 503 when backups are not configured.
func (h *Handler) backupsAvailable(rw *ResponseWriter) bool {
	if h.backups == nil || !h.backups.Enabled() {
		rw.ServiceUnavailable("backups are disabled")
		return false
	}
	return true
}

// HandleListBackups returns backups newest first.
func (h *Handler) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.backupsAvailable(rw) {
		return
	}
	list := h.backups.ListBackups()
	rw.List(list, len(list))
}

// HandleCreateBackup takes a manual snapshot of the local store.
func (h *Handler) HandleCreateBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.backupsAvailable(rw) {
		return
	}
	b, err := h.backups.CreateBackup(r.Context())
	if err != nil {
		respondBackupError(rw, err)
		return
	}
	rw.Created(b)
}

// HandleGetBackup returns one backup's metadata.
func (h *Handler) HandleGetBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.backupsAvailable(rw) {
		return
	}
	b, err := h.backups.GetBackup(chi.URLParam(r, "id"))
	if err != nil {
		respondBackupError(rw, err)
		return
	}
	rw.Success(b)
}

// HandleVerifyBackup recomputes the checksum of a backup file.
func (h *Handler) HandleVerifyBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.backupsAvailable(rw) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.backups.Verify(id); err != nil {
		respondBackupError(rw, err)
		return
	}
	rw.Success(map[string]interface{}{"id": id, "valid": true})
}

// HandleDeleteBackup removes a backup and its file.
func (h *Handler) HandleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.backupsAvailable(rw) {
		return
	}
	if err := h.backups.DeleteBackup(chi.URLParam(r, "id")); err != nil {
		respondBackupError(rw, err)
		return
	}
	rw.NoContent()
}

// HandleDownloadBackup streams the backup file.
func (h *Handler) HandleDownloadBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.backupsAvailable(rw) {
		return
	}
	f, b, err := h.backups.Open(chi.URLParam(r, "id"))
	if err != nil {
		respondBackupError(rw, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", b.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(b.Size, 10))
	w.Header().Set("X-Backup-ID", b.ID)
	w.Header().Set("X-Backup-Checksum", b.Checksum)
	if _, err := io.Copy(w, f); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("backup_id", b.ID).Msg("Backup download interrupted")
	}
}

// HandleUploadBackup imports a backup from the multipart field "backup".
// The file is stored alongside local backups; it is restored only with
// the -restore flag at startup.
func (h *Handler) HandleUploadBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.backupsAvailable(rw) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBackupUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		rw.BadRequest("invalid multipart form: " + err.Error())
		return
	}
	file, _, err := r.FormFile("backup")
	if err != nil {
		rw.BadRequest("missing form file \"backup\"")
		return
	}
	defer file.Close()

	b, err := h.backups.Import(r.Context(), file)
	if err != nil {
		respondBackupError(rw, err)
		return
	}
	rw.Created(b)
}
