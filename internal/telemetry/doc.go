// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry wires OpenTelemetry tracing and metrics for parley.
//
// Instrumented packages use the otel globals directly (otel.Tracer and
// otel.Meter). Init swaps those globals for SDK providers that write to
// rotated files under ~/.parley/telemetry. Telemetry is off by default.
//
// # Signals
//
//   - exchange.run span and parley.exchanges counter (internal/exchange)
//   - proxy.forward span (internal/cloud)
//   - http.request span and parley.http.requests counter (internal/server)
//
// # Usage
//
//	shutdown, err := telemetry.Init(ctx, telemetry.Options{
//	    Enabled: cfg.Telemetry.Enabled,
//	    Dir:     cfg.TelemetryDir(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//
// # Privacy
//
// Telemetry is local-only and does not transmit any data. Message content
// is never recorded.
package telemetry
