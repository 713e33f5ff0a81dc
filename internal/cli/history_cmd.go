// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/storage"
)

// defaultHistoryLimit is the number of sessions list and search print.
const defaultHistoryLimit = 20

// =============================================================================
// HISTORY COMMAND
// =============================================================================

// HandleHistory runs a history subcommand against the session archive.
func HandleHistory(app *App, args Args) error {
	store, err := storage.Open(app.Config.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	return runHistory(context.Background(), store, args, os.Stdout)
}

func runHistory(ctx context.Context, store *storage.Store, args Args, out io.Writer) error {
	p := NewArgParser(args.Raw)

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		sessions, err := store.List(ctx, p.FlagIntOrDefault("limit", defaultHistoryLimit))
		if err != nil {
			return err
		}
		return printSessions(out, "history list", sessions, args.JSON)

	case "search", "find":
		query := strings.Join(p.PositionalFrom(1), " ")
		if strings.TrimSpace(query) == "" {
			return errors.New("usage: parley history search <text>")
		}
		sessions, err := store.Search(ctx, query, p.FlagIntOrDefault("limit", defaultHistoryLimit))
		if err != nil {
			return err
		}
		return printSessions(out, "history search", sessions, args.JSON)

	case "show", "view":
		sess, err := loadSession(ctx, store, p.Positional(1), sub)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONSuccess("history show", sess).Write(out)
		}
		data, err := export.Render(sess, export.FormatMarkdown, &export.Options{IncludeTimestamps: true})
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err

	case "export":
		sess, err := loadSession(ctx, store, p.Positional(1), sub)
		if err != nil {
			return err
		}
		format, err := export.ParseFormat(p.Flag("format"))
		if err != nil {
			return err
		}
		opts := export.DefaultOptions()
		opts.OutputDir = p.FlagOrDefault("output", opts.OutputDir)
		exporter, err := export.New(format, opts)
		if err != nil {
			return err
		}
		path, err := export.ExportToFile(sess, exporter, opts)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONSuccess("history export", map[string]string{"id": sess.ID, "path": path}).Write(out)
		}
		fmt.Fprintln(out, successStyle.Render("Exported to "+path))
		return nil

	case "delete", "rm":
		sess, err := loadSession(ctx, store, p.Positional(1), sub)
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, sess.ID); err != nil {
			return err
		}
		if args.JSON {
			return NewJSONSuccess("history delete", map[string]string{"id": sess.ID}).Write(out)
		}
		fmt.Fprintln(out, successStyle.Render("Deleted session "+sess.ID))
		return nil

	default:
		return fmt.Errorf("unknown history subcommand: %s", sub)
	}
}

func loadSession(ctx context.Context, store *storage.Store, id, sub string) (*storage.StoredSession, error) {
	if id == "" {
		return nil, fmt.Errorf("usage: parley history %s <id>", sub)
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return sess, nil
}

func printSessions(out io.Writer, cmd string, sessions []storage.SessionMeta, asJSON bool) error {
	if asJSON {
		if sessions == nil {
			sessions = []storage.SessionMeta{}
		}
		return NewJSONSuccess(cmd, sessions).Write(out)
	}
	fmt.Fprint(out, storage.FormatSessionList(sessions))
	if len(sessions) == 0 {
		fmt.Fprintln(out)
	}
	return nil
}
