// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across parley.
//
// # Key Functions
//
// String Utilities:
//   - Truncate: width-aware truncation with an ellipsis (go-runewidth)
//   - PadRight, StringWidth: column-aware layout helpers
//   - OneLine, Preview: single-line previews for listings
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	// Fit a message preview into a table column
//	cell := util.PadRight(util.Preview(msg, 40), 40)
//
//	// Write files atomically to prevent data loss
//	err := util.AtomicWriteFile(path, data, 0600)
package util
