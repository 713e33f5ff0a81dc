// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/composer"
	"github.com/jeranaias/parley/internal/dictation"
	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/i18n"
	"github.com/jeranaias/parley/internal/session"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ExchangeDoneMsg:
		return m.handleExchangeDone(msg)

	case DictationMsg:
		m.applyDictation(msg.Snapshot)
		return m, m.bus.listen()

	case DictationStartedMsg:
		if msg.Err != nil {
			m.logger.Info("DICTATION_START_FAILED", "error", msg.Err)
		}
		return m, nil

	case TypingPausedMsg:
		m.logger.Debug("TYPING_PAUSED", "length", len(msg.Text))
		return m, m.bus.listen()

	case ConfigReloadedMsg:
		m.applyConfig(msg)
		return m, m.bus.listen()

	case ExportDoneMsg:
		if msg.Err != nil {
			m.notice = msg.Err.Error()
			m.logger.Warn("TRANSCRIPT_EXPORT_FAILED", "error", msg.Err)
		} else {
			m.notice = m.loc.T(i18n.KeyExportSaved) + " " + msg.Path
			m.logger.Info("TRANSCRIPT_EXPORTED", "path", msg.Path)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.sess.Pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.setViewportContent()
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		action, text := m.comp.HandleKey(composer.KeyPress{Key: composer.KeyEnter})
		if action != composer.ActionSend {
			return m, nil
		}
		m.input.Reset()
		return m.submit(text)

	case key.Matches(msg, m.keys.Newline):
		m.comp.HandleKey(composer.KeyPress{Key: composer.KeyEnter, Shift: true})
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		// The newline lands at the cursor, not necessarily at the end.
		m.comp.SetText(m.input.Value())
		return m, cmd

	case key.Matches(msg, m.keys.Dictate):
		return m.toggleDictation()

	case key.Matches(msg, m.keys.Language):
		lang := m.loc.Next()
		m.applyLanguage()
		m.refreshTranscript()
		m.logger.Info("LANGUAGE_CHANGED", "lang", lang, "source", "key")
		return m, nil

	case key.Matches(msg, m.keys.Export):
		return m, m.exportTranscript()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	// Editing stays live while pending; Commit refuses to send.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != m.comp.Text() {
		m.comp.SetText(v)
	}
	return m, cmd
}

// =============================================================================
// EXCHANGE
// =============================================================================

// submit hands a committed message to the session and starts the call.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	p, err := m.sess.Submit(text)
	if err != nil {
		if errors.Is(err, exchange.ErrPending) || errors.Is(err, session.ErrEmptyMessage) {
			return m, nil
		}
		m.notice = err.Error()
		return m, nil
	}

	m.notice = ""
	m.comp.SetDisabled(true)
	m.refreshTranscript()
	m.viewport.GotoBottom()

	sess, ctx := m.sess, m.ctx
	await := func() tea.Msg {
		return ExchangeDoneMsg{Outcome: sess.Await(ctx, p)}
	}
	return m, tea.Batch(m.spinner.Tick, await)
}

func (m Model) handleExchangeDone(msg ExchangeDoneMsg) (tea.Model, tea.Cmd) {
	if _, ok := m.sess.Settle(msg.Outcome); !ok {
		m.logger.Debug("STALE_EXCHANGE_DISCARDED", "epoch", msg.Outcome.Ticket.Epoch)
		return m, nil
	}

	m.refreshTranscript()
	m.viewport.GotoBottom()

	if m.comp.SetDisabled(m.sess.Pending()) {
		return m, m.input.Focus()
	}
	return m, nil
}

// =============================================================================
// DICTATION
// =============================================================================

func (m Model) toggleDictation() (tea.Model, tea.Cmd) {
	if m.dict == nil || !m.dictSnap.IsSupported {
		m.notice = m.loc.T(i18n.KeyMicUnsupported)
		return m, nil
	}
	if m.dictSnap.IsListening {
		m.dict.Stop()
		return m, nil
	}

	dict, ctx := m.dict, m.ctx
	opts := dictation.Options{Lang: m.loc.Language(), Continuous: m.continuous}
	m.notice = ""
	return m, func() tea.Msg {
		return DictationStartedMsg{Err: dict.Start(ctx, opts)}
	}
}

// applyDictation merges a snapshot into the composer and mirrors the
// buffer into the text area when a final transcript was appended.
func (m *Model) applyDictation(s dictation.Snapshot) {
	if s.Rev != 0 && s.Rev < m.dictSnap.Rev {
		return
	}
	m.dictSnap = s
	if m.comp.ApplyDictation(s) {
		m.input.SetValue(m.comp.Text())
		m.input.CursorEnd()
	}
}

// =============================================================================
// CONFIG & EXPORT
// =============================================================================

func (m *Model) applyConfig(msg ConfigReloadedMsg) {
	cfg := msg.Config
	if cfg == nil {
		return
	}

	if lang := cfg.UI.Language; lang != "" && lang != m.loc.Language() {
		if err := m.loc.SetLanguage(lang); err != nil {
			m.logger.Warn("CONFIG_LANGUAGE_REJECTED", "lang", lang, "error", err)
		} else {
			m.applyLanguage()
			m.logger.Info("LANGUAGE_CHANGED", "lang", m.loc.Language(), "source", "config")
		}
	}

	if cfg.UI.Markdown != m.markdown {
		m.markdown = cfg.UI.Markdown
		m.layout()
		return
	}
	m.refreshTranscript()
}

func (m Model) exportTranscript() tea.Cmd {
	log, lang := m.sess.Log(), m.loc.Language()
	opts := &export.Options{
		OutputDir:         m.exportDir,
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
	return func() tea.Msg {
		path, err := export.ExportLog(log, lang, export.FormatMarkdown, opts)
		return ExportDoneMsg{Path: path, Err: err}
	}
}
