// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// ServiceName is reported on every span and metric.
	ServiceName = "parley"

	// DefaultExportInterval is how often metrics are flushed.
	DefaultExportInterval = 10 * time.Second

	tracesFile  = "traces.log"
	metricsFile = "metrics.log"
)

// Options configures Init.
type Options struct {
	Enabled bool

	// Dir receives traces.log and metrics.log.
	Dir string

	Version string

	// ExportInterval overrides DefaultExportInterval.
	ExportInterval time.Duration
}

// Shutdown flushes exporters and closes their files.
type Shutdown func(ctx context.Context) error

// =============================================================================
// INITIALIZATION
// =============================================================================

// Init installs global tracer and meter providers that export to rotated
// files under opts.Dir. When disabled the otel no-op globals stay in place
// and the returned Shutdown does nothing.
func Init(ctx context.Context, opts Options) (Shutdown, error) {
	if !opts.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if opts.Dir == "" {
		return nil, errors.New("telemetry directory is not set")
	}
	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	interval := opts.ExportInterval
	if interval <= 0 {
		interval = DefaultExportInterval
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceSink := rotated(filepath.Join(opts.Dir, tracesFile))
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceSink))
	if err != nil {
		traceSink.Close()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	metricSink := rotated(filepath.Join(opts.Dir, metricsFile))
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricSink))
	if err != nil {
		traceSink.Close()
		metricSink.Close()
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			closeSink(traceSink),
			closeSink(metricSink),
		)
	}, nil
}

func rotated(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

func closeSink(c io.Closer) error {
	if err := c.Close(); err != nil {
		return fmt.Errorf("close telemetry file: %w", err)
	}
	return nil
}
