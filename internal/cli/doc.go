// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the parley command line.
//
// # Commands
//
//   - tui (default): full-screen chat with dictation
//   - chat: line-mode chat, also used when stdin or stdout is not a terminal
//   - ask: one question, one reply
//   - serve: the HTTP completion proxy
//   - history: list, search, show, export and delete archived sessions
//   - config: show, path, init, get, set and keys
//
// # Key Types
//
//   - Args: global flags and the raw subcommand arguments
//   - App: loaded config, logger and telemetry for one invocation
//   - ArgParser: flag and positional parsing for subcommands
//
// # Usage
//
//	cmd, args := cli.Parse()
//	os.Exit(cli.Run(cmd, args))
package cli
