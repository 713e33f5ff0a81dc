// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_Disabled(t *testing.T) {
	prev := otel.GetTracerProvider()

	shutdown, err := Init(context.Background(), Options{Enabled: false, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Same(t, prev, otel.GetTracerProvider(), "globals untouched when disabled")
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_RequiresDir(t *testing.T) {
	_, err := Init(context.Background(), Options{Enabled: true})
	require.Error(t, err)
}

func TestInit_ExportsToFiles(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	}()

	dir := filepath.Join(t.TempDir(), "telemetry")
	shutdown, err := Init(context.Background(), Options{
		Enabled:        true,
		Dir:            dir,
		Version:        "test",
		ExportInterval: time.Hour,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "exchange.run")
	span.End()

	counter, err := otel.Meter("telemetry_test").Int64Counter("parley.exchanges")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, shutdown(ctx))

	traces, err := os.ReadFile(filepath.Join(dir, tracesFile))
	require.NoError(t, err)
	assert.Contains(t, string(traces), "exchange.run")
	assert.Contains(t, string(traces), ServiceName)

	metrics, err := os.ReadFile(filepath.Join(dir, metricsFile))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "parley.exchanges")
}
