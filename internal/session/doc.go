// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session composes the session log, the request coordinator and the
// localizer into the chat session controller.
//
// # Key Types
//
//   - Controller: Owns the log, accepts sends, reconciles results
//   - Pending: An accepted send with its ticket and history snapshot
//   - Archiver: Optional sink for finished sessions
//
// # Lifecycle
//
// A session starts with one assistant greeting. Each accepted send appends
// the user message immediately, then exactly one assistant message once the
// request resolves: the reply, or the localized apology on failure. While a
// request is pending, further sends are rejected without touching the log.
//
// # Usage
//
// Asynchronous (TUI):
//
//	p, err := ctrl.Submit(text)
//	// later, on another goroutine:
//	out := ctrl.Await(ctx, p)
//	// back on the event loop:
//	msg, ok := ctrl.Settle(out)
//
// Synchronous (REPL):
//
//	reply, err := ctrl.Exchange(ctx, text)
package session
