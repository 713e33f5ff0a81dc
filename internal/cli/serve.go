// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/server"
)

// shutdownGrace bounds how long in-flight requests get after a signal.
const shutdownGrace = 10 * time.Second

// =============================================================================
// SERVE COMMAND
// =============================================================================

// HandleServe runs the HTTP server until SIGINT or SIGTERM.
func HandleServe(app *App, _ Args) error {
	cfg := app.Config
	client := newCloudClient(cfg, app)
	if !client.IsConfigured() {
		app.Logger.Warn("OPENROUTER_KEY_MISSING", "hint", "set OPENROUTER_API_KEY; /api/chat will fail")
		fmt.Fprintln(os.Stderr, warningStyle.Render("Warning: OPENROUTER_API_KEY is not set; /api/chat requests will fail."))
	}

	srv := server.New(serverConfig(cfg), client, app.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	fmt.Fprintln(os.Stderr, successStyle.Render("parley server listening on http://"+srv.Addr()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func newCloudClient(cfg *config.Config, app *App) *cloud.Client {
	opts := []cloud.Option{cloud.WithLogger(app.Logger)}
	if cfg.OpenRouter.Model != "" {
		opts = append(opts, cloud.WithModel(cfg.OpenRouter.Model))
	}
	if cfg.OpenRouter.BaseURL != "" {
		opts = append(opts, cloud.WithBaseURL(cfg.OpenRouter.BaseURL))
	}
	if cfg.OpenRouter.Referer != "" {
		opts = append(opts, cloud.WithReferer(cfg.OpenRouter.Referer))
	}
	if t := cfg.Completion.Timeout(); t > 0 {
		opts = append(opts, cloud.WithTimeout(t))
	}
	return cloud.NewClient(cfg.OpenRouter.APIKey, opts...)
}

// serverConfig maps the [server] section onto server.Config, keeping the
// server defaults for unset values.
func serverConfig(cfg *config.Config) server.Config {
	sc := server.DefaultConfig()
	if cfg.Server.Addr != "" {
		sc.Addr = cfg.Server.Addr
	}
	sc.Production = cfg.Server.Production
	sc.StubDelay = cfg.Server.StubDelay()
	if cfg.Server.RateLimit > 0 {
		sc.RateLimit = cfg.Server.RateLimit
	}
	if cfg.Server.RateBurst > 0 {
		sc.RateBurst = cfg.Server.RateBurst
	}
	if cfg.Server.MaxBodyBytes > 0 {
		sc.MaxBodyBytes = cfg.Server.MaxBodyBytes
	}
	return sc
}
