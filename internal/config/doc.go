// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for parley.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides and validation. A Watcher reloads the file when it changes so
// the TUI can switch language without a restart.
//
// # Key Types
//
//   - Config: Main configuration structure with all sections
//   - ValidateErrors: Every invalid field found by Validate
//   - Watcher: fsnotify-backed reloader for the config file
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (OPENROUTER_API_KEY, DEEPGRAM_API_KEY, PARLEY_*)
//   - ~/.parley/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	delay := cfg.Server.StubDelay()
package config
