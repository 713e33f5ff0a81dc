// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders chat sessions as Markdown or JSON.
//
// It serves both `parley history export` for archived sessions and the TUI
// ctrl+s save of the live transcript.
//
// # Key Types
//
//   - Format: md or json
//   - Exporter: per-format renderer
//   - Options: export configuration options
//
// # Usage
//
//	data, err := export.Render(sess, export.FormatMarkdown, nil)
//
//	path, err := export.ExportLog(log, "en", export.FormatJSON, &export.Options{
//	    OutputDir: ".",
//	})
package export
