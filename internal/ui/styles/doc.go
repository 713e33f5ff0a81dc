// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the parley TUI.
//
// Colors are lipgloss AdaptiveColor values. Status is always shown with an
// ASCII marker as well as a color.
//
// # Key Types
//
//   - Theme: the lipgloss styles of the chat screen
//   - SpinnerConfig: frame sequences for bubbles/spinner
//
// # Usage
//
//	theme := styles.NewTheme(cfg.UI.Theme)
//	theme.SetSize(width, height)
//	s := spinner.New(spinner.WithSpinner(styles.DotsSpinner.Bubbles()))
package styles
