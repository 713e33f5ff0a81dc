// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/parley/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

// HandleConfig runs a config subcommand.
func HandleConfig(app *App, args Args) error {
	return runConfig(app.Config, app.ConfigPath, args, os.Stdout)
}

func runConfig(cfg *config.Config, path string, args Args, out io.Writer) error {
	p := NewArgParser(args.Raw)

	switch sub := p.Subcommand(); sub {
	case "", "show":
		safe := cfg.Redacted()
		if args.JSON {
			return NewJSONSuccess("config show", safe).Write(out)
		}
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(safe); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		fmt.Fprintln(out, infoStyle.Render("# "+path))
		_, err := out.Write(buf.Bytes())
		return err

	case "path":
		fmt.Fprintln(out, path)
		return nil

	case "init":
		if _, err := os.Stat(path); err == nil && !p.BoolFlag("force") {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return err
		}
		fmt.Fprintln(out, successStyle.Render("Wrote "+path))
		return nil

	case "get":
		key := p.Positional(1)
		if key == "" {
			return errors.New("usage: parley config get <key>")
		}
		v, err := cfg.Redacted().Get(key)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONSuccess("config get", map[string]any{"key": key, "value": v}).Write(out)
		}
		fmt.Fprintln(out, v)
		return nil

	case "set":
		key, value := p.Positional(1), strings.Join(p.PositionalFrom(2), " ")
		if key == "" || p.PositionalCount() < 3 {
			return errors.New("usage: parley config set <key> <value>")
		}
		updated, err := loadFileOnly(path)
		if err != nil {
			return err
		}
		if err := updated.Set(key, value); err != nil {
			return err
		}
		if err := updated.Validate(); err != nil {
			return err
		}
		if err := config.SaveTOML(updated, path); err != nil {
			return err
		}
		_ = cfg.Set(key, value)
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%s = %s", key, value)))
		return nil

	case "keys":
		for _, k := range config.Keys() {
			fmt.Fprintln(out, k)
		}
		return nil

	default:
		return fmt.Errorf("unknown config subcommand: %s", sub)
	}
}

// loadFileOnly reads path without environment or flag overrides, so that
// set never persists values that came from the environment.
func loadFileOnly(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return config.Parse(string(data))
}
