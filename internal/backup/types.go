// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package backup

import (
	"errors"
	"io"
	"time"
)

// Trigger records what started a backup.
type Trigger string

const (
	// TriggerScheduled is the periodic automatic backup.
	TriggerScheduled Trigger = "scheduled"
	// TriggerManual is a backup requested through the API.
	TriggerManual Trigger = "manual"
	// TriggerImport is an uploaded snapshot.
	TriggerImport Trigger = "import"
)

var (
	// ErrDisabled is returned when backups are turned off in configuration.
	ErrDisabled = errors.New("backups are disabled")
	// ErrNotFound is returned for an unknown backup ID.
	ErrNotFound = errors.New("backup not found")
	// ErrChecksumMismatch means the file on disk no longer matches its metadata.
	ErrChecksumMismatch = errors.New("backup checksum mismatch")
	// ErrTargetNotEmpty is returned when restoring into a store that already holds data.
	ErrTargetNotEmpty = errors.New("restore target is not empty")
)

// Backup describes one snapshot file of the local store.
type Backup struct {
	ID        string        `json:"id"`
	FileName  string        `json:"file_name"`
	Trigger   Trigger       `json:"trigger"`
	Size      int64         `json:"size"`
	Checksum  string        `json:"checksum"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`
}

// Snapshotter produces a full snapshot of a store.
type Snapshotter interface {
	Backup(w io.Writer) error
}

// Restorer loads a snapshot into a store. CountPrefix("") reports how many
// keys the store holds.
type Restorer interface {
	Restore(r io.Reader) error
	CountPrefix(prefix string) (int, error)
}

// metadata is persisted next to the snapshot files.
type metadata struct {
	Backups       []*Backup  `json:"backups"`
	LastScheduled *time.Time `json:"last_scheduled,omitempty"`
}
