// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing for parley.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdServe
	CmdHistory
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdServe:
		return "serve"
	case CmdHistory:
		return "history"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath  string
	Mode        string
	Endpoint    string
	Lang        string
	Addr        string
	NoDictation bool
	Plain       bool
	JSON        bool

	// Query is the ask question.
	Query string

	// Raw holds the arguments after the command name, global flags removed.
	Raw []string
}

// ErrUnknownCommand is returned by ParseArgs for an unrecognized command.
var ErrUnknownCommand = errors.New("unknown command")

const usageText = `parley - chat assistant with voice dictation

Usage:
  parley                          Start the chat TUI (default)
  parley chat                     Line-mode chat (no TUI)
  parley ask "question"           Ask one question and print the reply
  parley serve                    Run the HTTP completion proxy
  parley history [subcommand]     Browse archived sessions
  parley config [subcommand]      Show or change configuration
  parley version                  Show version information
  parley help                     Show this help

History Commands:
  parley history list             List recent sessions
    --limit N                     Number of sessions (default: 20)
  parley history search <text>    Find sessions containing text
  parley history show <id>        Print a session transcript
  parley history export <id>      Export a session to a file
    --format md|json              Export format (default: md)
    --output DIR                  Output directory (default: .)
  parley history delete <id>      Delete a session

Config Commands:
  parley config show              Show the effective configuration
  parley config path              Print the config file path
  parley config init              Write a default config file
  parley config get <key>         Print one value (e.g. ui.language)
  parley config set <key> <value> Change one value

Global Flags:
  --config PATH                   Config file (default: ~/.parley/config.toml)
  --mode MODE                     Completion mode: auto, direct, proxy, generate, stub
  --endpoint URL                  Server base URL for proxy and generate modes
  --lang CODE                     UI language: en, es, fr, de, ar, zh, hi, ru, pt, ja
  --addr HOST:PORT                Listen address for serve
  --no-dictation                  Disable voice input
  --plain                         Use line mode instead of the TUI
  --json                          JSON output (ask, history, config, version)

Keys (TUI):
  enter send, alt+enter newline, ctrl+r dictate, ctrl+l language,
  ctrl+s save transcript, pgup/pgdn scroll, esc quit

Environment:
  OPENROUTER_API_KEY              OpenRouter key (direct mode and serve)
  DEEPGRAM_API_KEY                Speech-to-text key for dictation
  PARLEY_ENV=production           Hide error details in server responses
  PARLEY_ADDR, PARLEY_LANG, PARLEY_MODE, PARLEY_ENDPOINT

Version: %s
`

// PrintUsage prints the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "parley version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args. Parse errors print usage and exit with status 2.
func Parse() (Command, Args) {
	cmd, args, err := ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		PrintUsage(os.Stderr)
		os.Exit(2)
	}
	return cmd, args
}

// ParseArgs parses argv without the program name.
func ParseArgs(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}

	if len(remaining) == 0 {
		if args.Plain {
			return CmdChat, args, nil
		}
		return CmdTUI, args, nil
	}

	name := strings.ToLower(remaining[0])
	args.Raw = remaining[1:]

	switch name {
	case "tui":
		if args.Plain {
			return CmdChat, args, nil
		}
		return CmdTUI, args, nil
	case "chat":
		return CmdChat, args, nil
	case "ask":
		args.Query = strings.TrimSpace(strings.Join(NewArgParser(args.Raw).PositionalFrom(0), " "))
		if args.Query == "" {
			return CmdAsk, args, errors.New("ask requires a question")
		}
		return CmdAsk, args, nil
	case "serve", "server":
		return CmdServe, args, nil
	case "history", "sessions":
		return CmdHistory, args, nil
	case "config":
		return CmdConfig, args, nil
	case "version", "--version", "-v":
		return CmdVersion, args, nil
	case "help", "--help", "-h":
		return CmdHelp, args, nil
	default:
		return CmdHelp, args, fmt.Errorf("%w: %s", ErrUnknownCommand, remaining[0])
	}
}

// valueFlags take an argument.
var valueFlags = map[string]func(*Args, string){
	"config":   func(a *Args, v string) { a.ConfigPath = v },
	"mode":     func(a *Args, v string) { a.Mode = v },
	"endpoint": func(a *Args, v string) { a.Endpoint = v },
	"lang":     func(a *Args, v string) { a.Lang = v },
	"addr":     func(a *Args, v string) { a.Addr = v },
}

// parseGlobalFlags extracts global flags anywhere in argv and returns the
// rest in order.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var args Args
	var remaining []string

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch arg {
		case "--no-dictation":
			args.NoDictation = true
			continue
		case "--plain":
			args.Plain = true
			continue
		case "--json":
			args.JSON = true
			continue
		}

		if !strings.HasPrefix(arg, "--") {
			remaining = append(remaining, arg)
			continue
		}

		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		set, ok := valueFlags[name]
		if !ok {
			remaining = append(remaining, arg)
			continue
		}
		if !hasValue {
			if i+1 >= len(argv) {
				return nil, args, fmt.Errorf("flag --%s requires a value", name)
			}
			i++
			value = argv[i]
		}
		set(&args, value)
	}
	return remaining, args, nil
}
