// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
)

// handlers maps commands that need an App to their implementation.
var handlers = map[Command]func(*App, Args) error{
	CmdTUI:     HandleTUI,
	CmdChat:    HandleChat,
	CmdAsk:     HandleAsk,
	CmdServe:   HandleServe,
	CmdHistory: HandleHistory,
	CmdConfig:  HandleConfig,
}

// Run executes cmd and returns the process exit status.
func Run(cmd Command, args Args) int {
	switch cmd {
	case CmdHelp:
		PrintUsage(os.Stdout)
		return 0
	case CmdVersion:
		if args.JSON {
			_ = NewJSONSuccess(cmd.String(), map[string]string{
				"version":    Version,
				"git_commit": GitCommit,
				"build_date": BuildDate,
				"go":         runtime.Version(),
			}).Write(os.Stdout)
			return 0
		}
		PrintVersion(os.Stdout)
		return 0
	}

	handler, ok := handlers[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %v: %s\n", ErrUnknownCommand, cmd)
		return 2
	}

	app, err := NewApp(context.Background(), args)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		return 1
	}
	defer app.Close()

	if err := handler(app, args); err != nil {
		app.Logger.Error("COMMAND_FAILED", "command", cmd.String(), "error", err)
		if !args.JSON || cmd != CmdAsk {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		}
		return 1
	}
	return 0
}
