// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable ApplyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENROUTER_API_KEY", "DEEPGRAM_API_KEY", "PARLEY_ENV",
		"PARLEY_ADDR", "PARLEY_LANG", "PARLEY_MODE", "PARLEY_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
}

// =============================================================================
// DEFAULTS & LOADING
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "auto", cfg.Completion.Mode)
	assert.Equal(t, 1400*time.Millisecond, cfg.Server.StubDelay())
	assert.Equal(t, 1400*time.Millisecond, cfg.Completion.StubDelay())
	assert.Equal(t, 600*time.Millisecond, cfg.UI.Pause())
	assert.Equal(t, "openai/gpt-3.5-turbo", cfg.OpenRouter.Model)
	assert.Equal(t, "http://localhost:3000", cfg.OpenRouter.Referer)
	assert.False(t, cfg.Server.Production)
	assert.True(t, cfg.Dictation.Enabled)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoadFromPath_MergesOverDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[completion]
mode = "stub"

[ui]
language = "fr"

[dictation]
enabled = false
`), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "stub", cfg.Completion.Mode)
	assert.Equal(t, "fr", cfg.UI.Language)
	assert.False(t, cfg.Dictation.Enabled)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr, "unset fields keep defaults")
	assert.Equal(t, 16000, cfg.Dictation.SampleRate)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "permissions are tightened on load")
}

func TestLoadFromPath_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[completion\nmode="), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
}

func TestLoadFromPath_InvalidValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[completion]
mode = "telepathy"
`), 0600))

	_, err := LoadFromPath(path)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "completion.mode", verrs[0].Field)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.UI.Language = "ja"
	cfg.Server.Production = true
	cfg.Server.RateLimit = 2.5
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad mode", func(c *Config) { c.Completion.Mode = "x" }, "completion.mode"},
		{"bad endpoint scheme", func(c *Config) { c.Completion.Endpoint = "ftp://host" }, "completion.endpoint"},
		{"timeout too large", func(c *Config) { c.Completion.TimeoutSecs = 10000 }, "completion.timeout_secs"},
		{"negative stub delay", func(c *Config) { c.Server.StubDelayMs = -1 }, "server.stub_delay_ms"},
		{"addr without port", func(c *Config) { c.Server.Addr = "localhost" }, "server.addr"},
		{"dictation over http", func(c *Config) { c.Dictation.Endpoint = "http://api.deepgram.com" }, "dictation.endpoint"},
		{"unsupported language", func(c *Config) { c.UI.Language = "xx" }, "ui.language"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"pause too short", func(c *Config) { c.UI.PauseMs = 1 }, "ui.pause_ms"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tc.field, verrs[0].Field)
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	t.Setenv("DEEPGRAM_API_KEY", "dg-env")
	t.Setenv("PARLEY_ENV", "production")
	t.Setenv("PARLEY_ADDR", "0.0.0.0:9000")
	t.Setenv("PARLEY_LANG", "es")
	t.Setenv("PARLEY_MODE", "proxy")
	t.Setenv("PARLEY_ENDPOINT", "http://example.com")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "sk-or-env", cfg.OpenRouter.APIKey)
	assert.Equal(t, "dg-env", cfg.Dictation.APIKey)
	assert.True(t, cfg.Server.Production)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "es", cfg.UI.Language)
	assert.Equal(t, "proxy", cfg.Completion.Mode)
	assert.Equal(t, "http://example.com", cfg.Completion.Endpoint)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvOverrides_NonProductionEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARLEY_ENV", "development")

	cfg := Default()
	cfg.Server.Production = true
	cfg.ApplyEnvOverrides()
	assert.False(t, cfg.Server.Production)
}

// =============================================================================
// GET/SET & REDACTION
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("ui.language", "de"))
	require.NoError(t, cfg.Set("server.rate_burst", "7"))
	require.NoError(t, cfg.Set("server.production", "true"))
	require.NoError(t, cfg.Set("server.rate_limit", 1.5))

	v, err := cfg.Get("ui.language")
	require.NoError(t, err)
	assert.Equal(t, "de", v)
	assert.Equal(t, 7, cfg.Server.RateBurst)
	assert.True(t, cfg.Server.Production)
	assert.Equal(t, 1.5, cfg.Server.RateLimit)

	_, err = cfg.Get("ui.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("server.rate_burst", "many"))
	assert.Error(t, cfg.Set("ui.language.more", "x"))
}

func TestKeys_AllResolvable(t *testing.T) {
	cfg := Default()
	keys := Keys()
	assert.Contains(t, keys, "openrouter.api_key")
	assert.Contains(t, keys, "history.path")
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.OpenRouter.APIKey = "sk-or-secret"
	cfg.Dictation.APIKey = "dg-secret"

	s := cfg.String()
	assert.NotContains(t, s, "sk-or-secret")
	assert.NotContains(t, s, "dg-secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "sk-or-secret", cfg.OpenRouter.APIKey, "original is untouched")
}

func TestResolvedPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := Default()
	assert.Equal(t, filepath.Join(home, ".parley", "logs", "parley.log"), cfg.LogFile())
	assert.Equal(t, filepath.Join(home, ".parley", "history.db"), cfg.HistoryPath())
	assert.Equal(t, filepath.Join(home, ".parley", "telemetry"), cfg.TelemetryDir())

	cfg.History.Path = "/tmp/h.db"
	assert.Equal(t, "/tmp/h.db", cfg.HistoryPath())
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { changes <- c },
		WithReloadDelay(20*time.Millisecond),
		WithWatchLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer w.Close()

	cfg := Default()
	cfg.UI.Language = "hi"
	require.NoError(t, SaveTOML(cfg, path))

	select {
	case got := <-changes:
		assert.Equal(t, "hi", got.UI.Language)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatcher_SkipsInvalidFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, func(c *Config) { changes <- c },
		WithReloadDelay(20*time.Millisecond),
		WithWatchLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[ui]\nlanguage = \"klingon\"\n"), 0600))

	select {
	case got := <-changes:
		t.Fatalf("unexpected reload: %+v", got.UI)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_CloseIsFinal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	var calls int
	var mu sync.Mutex
	w, err := NewWatcher(path, func(*Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, WithReloadDelay(time.Hour))
	require.NoError(t, err)

	require.NoError(t, SaveTOML(Default(), path))
	require.NoError(t, w.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
	assert.Equal(t, path, w.Path())
}
