// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat screen.
//
// The screen shows a header with the title and language, the transcript in
// a scrollable viewport, a thinking placeholder while a reply is pending,
// the dictation hint with its interim overlay, a text area composer and a
// help footer.
//
// # Key Bindings
//
//   - enter: send
//   - alt+enter, ctrl+j: newline
//   - ctrl+r: start or stop dictation
//   - ctrl+l: cycle language
//   - ctrl+s: save the transcript as Markdown
//   - pgup, pgdown: scroll
//   - ctrl+c, esc: quit
//
// # Usage
//
//	m := chat.New(chat.Options{Session: sess, Dictation: src, Markdown: true})
//	defer m.Close()
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
package chat
