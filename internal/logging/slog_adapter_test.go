// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newCapturedSlogLogger(buf *bytes.Buffer) *slog.Logger {
	handler := &SlogHandler{logger: zerolog.New(buf)}
	return slog.New(handler)
}

func TestSlogHandlerLevels(t *testing.T) {
	tests := []struct {
		level     slog.Level
		wantLevel string
	}{
		{slog.LevelDebug, "debug"},
		{slog.LevelInfo, "info"},
		{slog.LevelWarn, "warn"},
		{slog.LevelError, "error"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := newCapturedSlogLogger(&buf)
		logger.Log(context.Background(), tt.level, "supervised")
		if !strings.Contains(buf.String(), `"level":"`+tt.wantLevel+`"`) {
			t.Errorf("level %v produced %s, want %s", tt.level, buf.String(), tt.wantLevel)
		}
	}
}

func TestSlogHandlerAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := newCapturedSlogLogger(&buf)

	logger.Info("service started",
		slog.String("service", "train"),
		slog.Int("restarts", 2),
		slog.Bool("supervised", true),
	)

	out := buf.String()
	for _, want := range []string{`"service":"train"`, `"restarts":2`, `"supervised":true`, "service started"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestSlogHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := newCapturedSlogLogger(&buf).With(slog.String("tree", "peermatch"))

	logger.WithGroup("suture").Info("event", slog.String("kind", "backoff"))

	out := buf.String()
	if !strings.Contains(out, `"tree":"peermatch"`) {
		t.Errorf("pre-bound attr missing: %s", out)
	}
	if !strings.Contains(out, `"suture.kind":"backoff"`) {
		t.Errorf("grouped attr missing: %s", out)
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewSlogLoggerUsesGlobal(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(zerolog.New(&buf))
	defer SetLogger(prev)

	NewSlogLogger().Info("bridged")
	if !strings.Contains(buf.String(), "bridged") {
		t.Errorf("slog output did not reach the zerolog sink: %s", buf.String())
	}
}
