// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/composer"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/debounce"
	"github.com/jeranaias/parley/internal/dictation"
	"github.com/jeranaias/parley/internal/i18n"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// Default dimensions before the first WindowSizeMsg.
const (
	defaultWidth  = 80
	defaultHeight = 24
	inputHeight   = 3
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options wires the chat screen to its collaborators.
type Options struct {
	// Session owns the log and the request lifecycle. Required.
	Session *session.Controller

	// Dictation is the speech source. Nil disables dictation.
	Dictation *dictation.Source

	// Continuous keeps dictation running across utterances.
	Continuous bool

	// Theme defaults to styles.NewTheme("auto").
	Theme *styles.Theme

	// PauseInterval is the typing quiet period. Zero uses the debounce
	// default.
	PauseInterval time.Duration

	// Markdown renders assistant replies with glamour.
	Markdown bool

	// ExportDir receives ctrl+s transcripts. Default: current directory.
	ExportDir string

	Logger *slog.Logger

	// Clock drives the typing pause detector. Tests use a manual clock.
	Clock debounce.Clock
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
//
// The Update loop is the only writer of UI state. Completion calls,
// dictation pumps and debounce timers report back through messages.
type Model struct {
	sess   *session.Controller
	loc    *i18n.Localizer
	dict   *dictation.Source
	comp   *composer.Composer
	bus    *bus
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	theme    *styles.Theme
	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	renderer   *glamour.TermRenderer
	markdown   bool
	transcript string

	continuous bool
	exportDir  string

	// dictSnap is the last dictation snapshot applied.
	dictSnap dictation.Snapshot
	notice   string

	width  int
	height int
}

// New creates the chat screen.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ThemeAuto)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}

	b := newBus()
	ctx, cancel := context.WithCancel(context.Background())

	copts := []composer.Option{
		composer.WithOnPause(func(text string) { b.send(TypingPausedMsg{Text: text}) }),
	}
	if opts.PauseInterval > 0 {
		copts = append(copts, composer.WithPauseInterval(opts.PauseInterval))
	}
	if opts.Clock != nil {
		copts = append(copts, composer.WithClock(opts.Clock))
	}

	m := Model{
		sess:       opts.Session,
		loc:        opts.Session.Localizer(),
		dict:       opts.Dictation,
		comp:       composer.New(copts...),
		bus:        b,
		logger:     opts.Logger,
		ctx:        ctx,
		cancel:     cancel,
		theme:      opts.Theme,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		viewport:   viewport.New(defaultWidth, defaultHeight),
		spinner:    spinner.New(spinner.WithSpinner(styles.DotsSpinner.Bubbles())),
		markdown:   opts.Markdown,
		continuous: opts.Continuous,
		exportDir:  opts.ExportDir,
		width:      defaultWidth,
		height:     defaultHeight,
	}

	m.input = textarea.New()
	m.input.ShowLineNumbers = false
	m.input.CharLimit = 0
	m.input.SetHeight(inputHeight)
	m.input.KeyMap.InsertNewline = key.NewBinding(key.WithKeys(m.keys.Newline.Keys()...))
	m.input.Focus()

	if m.dict != nil {
		m.dict.OnChange(func(s dictation.Snapshot) { b.send(DictationMsg{Snapshot: s}) })
		m.dictSnap = m.dict.Snapshot()
	}

	m.applyLanguage()
	m.layout()
	return m
}

// Init starts the bus listener and probes the microphone.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.bus.listen()}
	if m.dict != nil {
		dict, ctx := m.dict, m.ctx
		cmds = append(cmds, func() tea.Msg {
			probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			dict.RefreshPermission(probeCtx)
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// ConfigReloaded forwards a reloaded configuration into the Update loop. It
// is safe to call from any goroutine, including a config.Watcher callback.
func (m Model) ConfigReloaded(cfg *config.Config) {
	m.bus.send(ConfigReloadedMsg{Config: cfg})
}

// Composer exposes the input buffer.
func (m Model) Composer() *composer.Composer {
	return m.comp
}

// Close stops dictation and the pause detector and cancels any in-flight
// completion call. The session itself is closed by its owner.
func (m Model) Close() {
	m.cancel()
	m.bus.close()
	m.comp.Close()
	if m.dict != nil {
		m.dict.Close()
	}
}

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the widgets for the current window.
func (m *Model) layout() {
	m.theme.SetSize(m.width, m.height)
	w := m.theme.ContentWidth()

	m.input.SetWidth(w)
	m.help.Width = m.width

	// header(2) + dictation/notice(2) + input(inputHeight+2) + footer(1)
	vpHeight := m.height - 2 - 2 - (inputHeight + 2) - 1
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight

	if m.markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.theme.Name),
			glamour.WithWordWrap(w-2),
		)
		if err != nil {
			m.logger.Warn("MARKDOWN_RENDERER_FAILED", "error", err)
			r = nil
		}
		m.renderer = r
	}
	m.refreshTranscript()
}

// applyLanguage refreshes every translated widget string.
func (m *Model) applyLanguage() {
	m.input.Placeholder = m.loc.T(i18n.KeyPlaceholder)
}
