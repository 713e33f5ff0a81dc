// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures parley's structured log output.
//
// Logs are JSON lines written through slog to a size-rotated file. The TUI
// owns the terminal, so nothing is ever written to stdout.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the log sink.
type Options struct {
	// File is the log file path. Empty disables logging.
	File string

	// Level is one of debug, info, warn, error.
	Level string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Runtime bundles the logger with the file it writes to.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the log file.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New builds a JSON logger writing to a rotating file and installs it as
// the slog default.
func New(opts Options) (Runtime, error) {
	if opts.File == "" {
		logger := Discard()
		slog.SetDefault(logger)
		return Runtime{Logger: logger}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
		return Runtime{}, fmt.Errorf("failed to create log directory: %w", err)
	}

	sink := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	logger := slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}))
	slog.SetDefault(logger)

	return Runtime{Logger: logger, Path: opts.File, closer: sink}, nil
}

// ParseLevel maps a config level name to a slog.Level. Unknown names map
// to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
