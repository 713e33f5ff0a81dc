// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/parley/internal/completion"
	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// ASK COMMAND
// =============================================================================

// HandleAsk sends one question and prints the reply.
func HandleAsk(app *App, args Args) error {
	svc, mode, err := app.Service()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	render := func(s string) string { return s }
	if IsStdoutTTY() && !args.JSON {
		render = renderMarkdown
	}
	return runAsk(ctx, svc, mode, app.Localizer().Language(), args, os.Stdout, render)
}

func runAsk(ctx context.Context, svc completion.Service, mode completion.Mode, lang string, args Args, out io.Writer, render func(string) string) error {
	start := time.Now()
	reply, err := svc.Complete(ctx, []model.ChatMessage{{Role: model.RoleUser.String(), Content: args.Query}})
	elapsed := time.Since(start)

	if args.JSON {
		if err != nil {
			_ = NewJSONError(CmdAsk.String(), err).Write(out)
			return err
		}
		return NewJSONSuccess(CmdAsk.String(), AskData{
			Question:   args.Query,
			Answer:     reply,
			Mode:       string(mode),
			Language:   lang,
			DurationMs: elapsed.Milliseconds(),
		}).Write(out)
	}

	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	fmt.Fprintln(out, strings.TrimRight(render(reply), "\n"))
	return nil
}

// renderMarkdown formats text for the terminal, falling back to plain text
// when glamour cannot render it.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetTerminalWidth()-2),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}
