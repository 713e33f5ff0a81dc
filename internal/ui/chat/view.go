// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/dictation"
	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/i18n"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.renderDictation(),
		m.renderInput(),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(m.loc.T(i18n.KeyTitle))
	lang := m.theme.HeaderLang.Render(m.loc.T(i18n.KeyLanguage) + ": " + m.loc.Language())

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(lang) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + lang)
}

// renderDictation is the listening hint with the interim overlay, or the
// last dictation error, or a transient notice. It is always two lines.
func (m Model) renderDictation() string {
	var lines []string
	s := m.dictSnap

	if s.IsListening {
		lines = append(lines, m.theme.Listening.Render(styles.StatusIndicators.Listening+" "+m.loc.T(i18n.KeyListening)))
		if interim := m.comp.Interim(); interim != "" {
			lines = append(lines, m.theme.Interim.Render(util.Truncate(util.OneLine(interim), m.theme.ContentWidth())))
		}
	} else if s.LastError != nil {
		lines = append(lines, m.theme.ErrorLine.Render(styles.StatusIndicators.Error+" "+m.dictationError(s.LastError)))
	}
	if m.notice != "" {
		lines = append(lines, m.theme.Notice.Render(util.Truncate(m.notice, m.theme.ContentWidth())))
	}

	for len(lines) < 2 {
		lines = append(lines, "")
	}
	return strings.Join(lines[:2], "\n")
}

func (m Model) renderInput() string {
	if m.comp.Disabled() {
		return m.theme.InputDisabled.Render(m.input.View())
	}
	return m.theme.InputFocused.Render(m.input.View())
}

func (m Model) renderFooter() string {
	var status string
	switch {
	case m.sess.Pending():
		status = m.theme.StatusPending.Render(styles.StatusIndicators.Pending + " " + m.loc.T(i18n.KeyStatusPending))
	case m.comp.Typing():
		status = m.theme.StatusReady.Render(styles.StatusIndicators.Ready + " " + m.loc.T(i18n.KeyTyping))
	case m.sess.LastResult() == exchange.StateFailed:
		status = m.theme.ErrorLine.Render(styles.StatusIndicators.Error + " " + m.loc.T(i18n.KeyStatusReady))
	default:
		status = m.theme.StatusReady.Render(styles.StatusIndicators.Ready + " " + m.loc.T(i18n.KeyStatusReady))
	}
	return m.theme.Footer.Render(status + "  " + m.help.View(m.keys))
}

// dictationError localizes the known error kinds.
func (m Model) dictationError(e *dictation.Error) string {
	switch e.Kind {
	case dictation.KindPermissionDenied:
		return m.loc.T(i18n.KeyPermissionDenied)
	case dictation.KindNoMicrophone:
		return m.loc.T(i18n.KeyNoMicrophone)
	case dictation.KindUnsupported:
		return m.loc.T(i18n.KeyUnsupported)
	case dictation.KindStartFailed:
		return m.loc.T(i18n.KeyStartFailed)
	default:
		return e.Message
	}
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshTranscript re-renders the session log. It runs only when the log,
// the language or the width changes; spinner ticks reuse the result.
func (m *Model) refreshTranscript() {
	msgs := m.sess.Log().Messages()
	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, m.renderMessage(msg))
	}
	m.transcript = strings.Join(blocks, "\n\n")
	m.setViewportContent()
}

// setViewportContent appends the thinking placeholder while pending. The
// placeholder is never a log message.
func (m *Model) setViewportContent() {
	content := m.transcript
	if m.sess.Pending() {
		content += "\n\n" + m.theme.Thinking.Render(m.spinner.View()+" "+m.loc.T(i18n.KeyThinking))
	}
	m.viewport.SetContent(content)
}

func (m *Model) renderMessage(msg model.Message) string {
	w := m.theme.ContentWidth()
	stamp := m.theme.Timestamp.Render(msg.CreatedAt.Format("15:04"))

	if msg.IsUser() {
		label := m.theme.UserLabel.Render(m.loc.T(i18n.KeyYou))
		body := m.theme.UserBubble.Width(w - 2).Render(msg.Content)
		return label + " " + stamp + "\n" + body
	}

	label := m.theme.AssistantLabel.Render(m.loc.T(i18n.KeyAssistant))
	body := msg.Content
	if m.markdown && m.renderer != nil {
		if out, err := m.renderer.Render(msg.Content); err == nil {
			return label + " " + stamp + "\n" + strings.Trim(out, "\n")
		}
	}
	return label + " " + stamp + "\n" + m.theme.AssistantBubble.Width(w).Render(body)
}
