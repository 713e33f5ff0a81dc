// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jeranaias/parley/internal/completion"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/dictation"
	"github.com/jeranaias/parley/internal/i18n"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/speech"
	"github.com/jeranaias/parley/internal/storage"
	"github.com/jeranaias/parley/internal/telemetry"
)

// =============================================================================
// APP
// =============================================================================

// App is the process-wide runtime shared by the commands: configuration,
// the log sink and telemetry.
type App struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger

	logs     logging.Runtime
	shutdown telemetry.Shutdown
}

// NewApp loads configuration, applies flag overrides and starts logging and
// telemetry.
func NewApp(ctx context.Context, args Args) (*App, error) {
	cfg, path, err := loadConfig(args)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, args); err != nil {
		return nil, err
	}

	logs, err := logging.New(logging.Options{
		File:       cfg.LogFile(),
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		Enabled: cfg.Telemetry.Enabled,
		Dir:     cfg.TelemetryDir(),
		Version: Version,
	})
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	logs.Logger.Info("APP_STARTED",
		"version", Version,
		"config", path,
		"mode", cfg.Completion.Mode,
		"telemetry", cfg.Telemetry.Enabled,
	)

	return &App{
		Config:     cfg,
		ConfigPath: path,
		Logger:     logs.Logger,
		logs:       logs,
		shutdown:   shutdown,
	}, nil
}

// Close flushes telemetry and closes the log file.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), telemetry.DefaultExportInterval)
	defer cancel()
	return errors.Join(a.shutdown(ctx), a.logs.Close())
}

// loadConfig reads --config when given, otherwise the default file. A
// missing file means defaults.
func loadConfig(args Args) (*config.Config, string, error) {
	if args.ConfigPath == "" {
		path, _ := config.Path()
		cfg, err := config.Load()
		if err != nil {
			return nil, path, err
		}
		return cfg, path, nil
	}

	if _, err := os.Stat(args.ConfigPath); errors.Is(err, os.ErrNotExist) {
		cfg := config.Default()
		cfg.ApplyEnvOverrides()
		return cfg, args.ConfigPath, nil
	}
	cfg, err := config.LoadFromPath(args.ConfigPath)
	return cfg, args.ConfigPath, err
}

// applyFlags lets command-line flags win over file and environment.
func applyFlags(cfg *config.Config, args Args) error {
	if args.Mode != "" {
		cfg.Completion.Mode = args.Mode
	}
	if args.Endpoint != "" {
		cfg.Completion.Endpoint = args.Endpoint
	}
	if args.Lang != "" {
		cfg.UI.Language = args.Lang
	}
	if args.Addr != "" {
		cfg.Server.Addr = args.Addr
	}
	if args.NoDictation {
		cfg.Dictation.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Service builds the completion backend the config selects.
func (a *App) Service() (completion.Service, completion.Mode, error) {
	cfg := a.Config
	svc, mode, err := completion.New(completion.Settings{
		Mode:      completion.Mode(cfg.Completion.Mode),
		Endpoint:  cfg.Completion.Endpoint,
		APIKey:    cfg.OpenRouter.APIKey,
		Model:     cfg.OpenRouter.Model,
		BaseURL:   cfg.OpenRouter.BaseURL,
		Timeout:   cfg.Completion.Timeout(),
		StubDelay: cfg.Completion.StubDelay(),
		Logger:    a.Logger,
	})
	if err != nil {
		return nil, mode, fmt.Errorf("completion backend: %w", err)
	}
	a.Logger.Info("COMPLETION_BACKEND", "mode", mode)
	return svc, mode, nil
}

// Localizer returns a localizer for ui.language, or for $LC_ALL/$LANG when
// the language is unset.
func (a *App) Localizer() *i18n.Localizer {
	loc := i18n.MustNew(i18n.Fallback)
	lang := a.Config.UI.Language
	if lang == "" {
		lang = loc.Match(os.Getenv("LC_ALL"), os.Getenv("LANG"))
	}
	if err := loc.SetLanguage(lang); err != nil {
		a.Logger.Warn("LANGUAGE_FALLBACK", "lang", lang, "error", err)
	}
	return loc
}

// Archive opens the history store, or returns nil when history is off.
func (a *App) Archive() (*storage.Store, error) {
	if !a.Config.History.Enabled {
		return nil, nil
	}
	store, err := storage.Open(a.Config.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

// Dictation builds the speech source, or nil when dictation is disabled.
func (a *App) Dictation() *dictation.Source {
	cfg := a.Config.Dictation
	if !cfg.Enabled {
		return nil
	}
	rec := speech.NewRecognizer(speech.Config{
		APIKey:          cfg.APIKey,
		Endpoint:        cfg.Endpoint,
		Model:           cfg.Model,
		SampleRate:      cfg.SampleRate,
		NoSpeechTimeout: cfg.NoSpeechTimeout(),
	}, speech.NewPulseMicrophone(), speech.WithLogger(a.Logger))
	return dictation.NewSource(rec, a.Logger)
}
