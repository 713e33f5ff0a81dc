// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/parley/internal/composer"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/i18n"
	"github.com/jeranaias/parley/internal/session"
)

// =============================================================================
// LINE MODE CHAT
// =============================================================================

// lineReader reads one edited line. *liner.State implements it.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

// HandleChat runs the line-mode chat on the terminal.
func HandleChat(app *App, args Args) error {
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

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyFile := chatHistoryFile()
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	highlight := plainCode
	if IsStdoutTTY() {
		highlight = highlightCode
	}
	return runREPL(context.Background(), sess, line, os.Stdout, highlight)
}

func chatHistoryFile() string {
	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

// runREPL reads lines until /quit or EOF. A trailing backslash continues
// the message on the next line.
func runREPL(ctx context.Context, sess *session.Controller, in lineReader, out io.Writer, highlight func(code, lang string) string) error {
	loc := sess.Localizer()
	comp := composer.New()
	defer comp.Close()

	fmt.Fprintln(out, assistantStyle.Render(loc.T(i18n.KeyTitle))+infoStyle.Render("  (/help for commands)"))
	fmt.Fprintln(out, sess.Log().Last().Content)
	fmt.Fprintln(out)

	prompt := "you> "
	for {
		input, err := in.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		var text string
		switch cmd := strings.TrimSpace(input); {
		case comp.Text() == "" && cmd == "/retry":
			// Resend the latest user message, e.g. after an apology.
			text = sess.Log().LastUserContent()
			if text == "" {
				fmt.Fprintln(out, warningStyle.Render("Nothing to retry yet."))
				continue
			}

		case comp.Text() == "" && strings.HasPrefix(cmd, "/"):
			if quit := handleSlash(cmd, sess, out); quit {
				return nil
			}
			continue

		case strings.HasSuffix(input, "\\"):
			comp.SetText(comp.Text() + strings.TrimSuffix(input, "\\"))
			comp.HandleKey(composer.KeyPress{Key: composer.KeyEnter, Shift: true})
			prompt = "...> "
			continue

		default:
			comp.SetText(comp.Text() + input)
			prompt = "you> "
			action, committed := comp.HandleKey(composer.KeyPress{Key: composer.KeyEnter})
			if action != composer.ActionSend {
				comp.SetText("")
				continue
			}
			text = committed
			if st, ok := in.(*liner.State); ok {
				st.AppendHistory(text)
			}
		}

		fmt.Fprintln(out, infoStyle.Render(loc.T(i18n.KeyThinking)))
		callCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		msg, err := sess.Exchange(callCtx, text)
		stop()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("Error: "+err.Error()))
			continue
		}

		fmt.Fprintln(out, assistantStyle.Render(loc.T(i18n.KeyAssistant)+":"))
		fmt.Fprintln(out, highlightFences(msg.Content, highlight))
		fmt.Fprintln(out)
	}
}

// handleSlash runs a line-mode command and reports whether to quit.
func handleSlash(input string, sess *session.Controller, out io.Writer) bool {
	fields := strings.Fields(input)
	loc := sess.Localizer()

	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true
	case "/lang":
		if len(fields) < 2 {
			fmt.Fprintf(out, "%s: %s (%s)\n", loc.T(i18n.KeyLanguage), promptStyle.Render(loc.Language()), strings.Join(i18n.Languages(), ", "))
			return false
		}
		if err := loc.SetLanguage(fields[1]); err != nil {
			fmt.Fprintln(out, warningStyle.Render(err.Error()))
			return false
		}
		fmt.Fprintln(out, successStyle.Render(loc.T(i18n.KeyLanguage)+": "+loc.Language()))
	case "/help":
		fmt.Fprintln(out, infoStyle.Render("Commands: /lang [code], /retry, /quit. End a line with \\ to continue on the next line."))
	default:
		fmt.Fprintln(out, warningStyle.Render("Unknown command: "+fields[0]))
	}
	return false
}
