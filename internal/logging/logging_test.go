// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLevel(tc.in))
		})
	}
}

func TestNew_WritesJSONLines(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "logs", "parley.log")
	rt, err := New(Options{File: path, Level: "warn", MaxSizeMB: 1})
	require.NoError(t, err)

	rt.Logger.Info("DROPPED")
	rt.Logger.Warn("EXCHANGE_FAILED", "epoch", 3)
	require.NoError(t, rt.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "EXCHANGE_FAILED", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.EqualValues(t, 3, rec["epoch"])
	assert.Equal(t, path, rt.Path)
}

func TestNew_EmptyFileDiscards(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	rt, err := New(Options{})
	require.NoError(t, err)
	assert.Empty(t, rt.Path)
	assert.False(t, rt.Logger.Enabled(context.Background(), slog.LevelError))
	assert.NoError(t, rt.Close())
}
