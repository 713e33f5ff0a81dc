// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jeranaias/parley/internal/cloud"
)

// Mode selects a completion backend.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeDirect   Mode = "direct"
	ModeProxy    Mode = "proxy"
	ModeGenerate Mode = "generate"
	ModeStub     Mode = "stub"
)

// Modes lists every valid mode.
var Modes = []Mode{ModeAuto, ModeDirect, ModeProxy, ModeGenerate, ModeStub}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	for _, v := range Modes {
		if m == v {
			return true
		}
	}
	return false
}

// Settings holds what New needs to build a backend.
type Settings struct {
	Mode      Mode
	Endpoint  string
	APIKey    string
	Model     string
	BaseURL   string
	Timeout   time.Duration
	StubDelay time.Duration
	Logger    *slog.Logger
}

// New builds the Service for s.Mode. Auto picks the direct OpenRouter
// client when an API key is set and the in-process stub otherwise. It also
// returns the mode actually chosen.
func New(s Settings) (Service, Mode, error) {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	mode := s.Mode
	if mode == "" {
		mode = ModeAuto
	}
	if mode == ModeAuto {
		if s.APIKey != "" {
			mode = ModeDirect
		} else {
			mode = ModeStub
		}
	}

	switch mode {
	case ModeDirect:
		if s.APIKey == "" {
			return nil, mode, cloud.ErrNotConfigured
		}
		opts := []cloud.Option{
			cloud.WithModel(s.Model),
			cloud.WithTimeout(timeout),
			cloud.WithLogger(s.Logger),
		}
		if s.BaseURL != "" {
			opts = append(opts, cloud.WithBaseURL(s.BaseURL))
		}
		return cloud.NewClient(s.APIKey, opts...), mode, nil
	case ModeProxy, ModeGenerate:
		if s.Endpoint == "" {
			return nil, mode, fmt.Errorf("completion mode %q requires an endpoint", mode)
		}
		hc := &http.Client{Timeout: timeout}
		if mode == ModeProxy {
			return NewProxyClient(s.Endpoint, hc), mode, nil
		}
		return NewGenerateClient(s.Endpoint, hc), mode, nil
	case ModeStub:
		return NewStub(s.StubDelay), mode, nil
	default:
		return nil, mode, fmt.Errorf("unknown completion mode %q", mode)
	}
}
