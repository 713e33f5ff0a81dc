// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds the styled components of the chat screen.
type Theme struct {
	// Name is the resolved theme, dark or light.
	Name         string
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderLang  lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT
	// ==========================================================================

	UserLabel       lipgloss.Style
	AssistantLabel  lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	Timestamp       lipgloss.Style
	Thinking        lipgloss.Style

	// ==========================================================================
	// DICTATION
	// ==========================================================================

	Listening lipgloss.Style
	Interim   lipgloss.Style
	ErrorLine lipgloss.Style

	// ==========================================================================
	// COMPOSER & FOOTER
	// ==========================================================================

	InputFocused  lipgloss.Style
	InputDisabled lipgloss.Style
	StatusReady   lipgloss.Style
	StatusPending lipgloss.Style
	Notice        lipgloss.Style
	Footer        lipgloss.Style
}

// NewTheme builds a theme. name is auto, dark or light; auto asks the
// terminal. Forcing a name also sets lipgloss's background so adaptive
// colors agree with it.
func NewTheme(name string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch name {
	case ThemeDark:
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case ThemeLight:
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		Name:         ThemeLight,
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	if isDark {
		t.Name = ThemeDark
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderLang = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBubbleBorder).
		PaddingLeft(1).
		MarginLeft(2)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBubbleBorder).
		PaddingLeft(1)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Thinking = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.Listening = lipgloss.NewStyle().
		Bold(true).
		Foreground(Amber)

	t.Interim = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ErrorLine = lipgloss.NewStyle().
		Foreground(Rose)

	t.InputFocused = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(FocusRing)

	t.InputDisabled = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Foreground(TextMuted)

	t.StatusReady = lipgloss.NewStyle().
		Foreground(Emerald)

	t.StatusPending = lipgloss.NewStyle().
		Foreground(Amber)

	t.Notice = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.Footer = lipgloss.NewStyle().
		Foreground(TextMuted).
		Padding(0, 1)
}

// SetSize updates the theme dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// ContentWidth is the usable transcript width.
func (t *Theme) ContentWidth() int {
	w := t.Width - 4
	if w < 20 {
		return 20
	}
	return w
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode is the responsive layout class.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)
