// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandler_Enabled(t *testing.T) {
	t.Parallel()

	logger := zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel)
	h := NewSlogHandlerWithLogger(logger)

	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, false},
		{slog.LevelWarn, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestSlogHandler_Handle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))

	slogger.Warn("service restarted",
		slog.String("service", "sync-scheduler"),
		slog.Int("restarts", 2),
		slog.Duration("backoff", time.Second),
		slog.Bool("terminal", false),
	)

	output := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"service":"sync-scheduler"`,
		`"restarts":2`,
		`"terminal":false`,
		"service restarted",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf))).
		With(slog.String("tree", "elevation-loom")).
		WithGroup("supervisor")

	slogger.Info("started", slog.String("layer", "sync"))

	output := buf.String()
	if !strings.Contains(output, `"supervisor.tree":"elevation-loom"`) {
		t.Errorf("expected grouped pre-configured attribute: %s", output)
	}
	if !strings.Contains(output, `"supervisor.layer":"sync"`) {
		t.Errorf("expected grouped record attribute: %s", output)
	}
}

func TestSlogHandler_NestedGroupAttr(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))
	slogger.Info("event", slog.Group("failure", slog.String("service", "http-server")))

	if !strings.Contains(buf.String(), `"failure.service":"http-server"`) {
		t.Errorf("expected flattened group key: %s", buf.String())
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	NewSlogLogger().Info("service started", "service", "sync-scheduler")

	output := buf.String()
	if !strings.Contains(output, `"component":"supervisor"`) {
		t.Errorf("missing component field: %s", output)
	}
	if !strings.Contains(output, `"service":"sync-scheduler"`) {
		t.Errorf("missing attribute: %s", output)
	}
}
