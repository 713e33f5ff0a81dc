// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/ui/chat"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// HandleTUI runs the full-screen chat. Without a terminal it falls back to
// line mode.
func HandleTUI(app *App, args Args) error {
	if !IsTTY() || !IsStdoutTTY() {
		app.Logger.Info("TUI_FALLBACK", "reason", "not a terminal")
		return HandleChat(app, args)
	}

	svc, _, err := app.Service()
	if err != nil {
		return err
	}

	opts := []session.Option{session.WithLogger(app.Logger)}
	store, err := app.Archive()
	if err != nil {
		app.Logger.Warn("HISTORY_UNAVAILABLE", "error", err)
	} else if store != nil {
		defer store.Close()
		opts = append(opts, session.WithArchiver(store))
	}

	sess := session.New(svc, app.Localizer(), opts...)
	defer sess.Close()

	m := chat.New(chat.Options{
		Session:       sess,
		Dictation:     app.Dictation(),
		Continuous:    app.Config.Dictation.Continuous,
		Theme:         styles.NewTheme(app.Config.UI.Theme),
		PauseInterval: app.Config.UI.Pause(),
		Markdown:      app.Config.UI.Markdown,
		Logger:        app.Logger,
	})
	defer m.Close()

	if app.ConfigPath != "" {
		w, err := config.NewWatcher(app.ConfigPath, m.ConfigReloaded, config.WithWatchLogger(app.Logger))
		if err != nil {
			app.Logger.Warn("CONFIG_WATCH_FAILED", "path", app.ConfigPath, "error", err)
		} else {
			defer w.Close()
		}
	}

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
