// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package exchange drives the send, pending, resolved lifecycle of one
// outstanding request to a completion service.
package exchange

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeranaias/parley/internal/completion"
	"github.com/jeranaias/parley/internal/model"
)

const instrumentationName = "github.com/jeranaias/parley/internal/exchange"

var (
	// ErrPending is returned by Begin while an exchange is outstanding.
	ErrPending = errors.New("an exchange is already pending")

	// ErrEmptyReply is the failure recorded when the service answers with
	// blank text.
	ErrEmptyReply = errors.New("empty reply from completion service")
)

// Ticket identifies one begun exchange. Its Epoch is compared at resolution
// time so results of superseded exchanges are discarded.
type Ticket struct {
	Epoch   uint64
	Started time.Time
}

// Outcome is the raw result of running an exchange.
type Outcome struct {
	Ticket   Ticket
	Reply    string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the outcome carries a reply.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator enforces at most one pending exchange.
//
// A caller Begins an exchange, Runs it (typically on another goroutine) and
// Resolves the outcome. Invalidate abandons whatever is in flight: its
// outcome will no longer resolve.
type Coordinator struct {
	svc    completion.Service
	logger *slog.Logger
	tracer trace.Tracer

	exchanges metric.Int64Counter
	latency   metric.Float64Histogram

	mu    sync.Mutex
	state State
	epoch uint64
	last  State
}

// NewCoordinator creates an idle Coordinator.
func NewCoordinator(svc completion.Service, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter(instrumentationName)
	exchanges, err := meter.Int64Counter("parley.exchanges",
		metric.WithDescription("Completed exchanges by outcome"))
	if err != nil {
		logger.Warn("METRIC_INIT_FAILED", "metric", "parley.exchanges", "error", err)
	}
	latency, err := meter.Float64Histogram("parley.exchange.duration",
		metric.WithDescription("Exchange duration"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Warn("METRIC_INIT_FAILED", "metric", "parley.exchange.duration", "error", err)
	}

	return &Coordinator{
		svc:       svc,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		exchanges: exchanges,
		latency:   latency,
		state:     StateIdle,
		last:      StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending reports whether an exchange is outstanding.
func (c *Coordinator) Pending() bool {
	return c.State() == StatePending
}

// LastResult returns the resolved state of the most recent exchange:
// StateSucceeded, StateFailed, or StateIdle if none resolved yet.
func (c *Coordinator) LastResult() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Begin moves idle to pending and returns the exchange ticket. It returns
// ErrPending, and changes nothing, while another exchange is outstanding.
func (c *Coordinator) Begin() (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePending {
		return Ticket{}, ErrPending
	}
	next, err := Transition(c.state, EventBegin)
	if err != nil {
		return Ticket{}, err
	}
	c.state = next
	c.epoch++
	return Ticket{Epoch: c.epoch, Started: time.Now()}, nil
}

// Run calls the completion service for ticket. It blocks until the service
// answers or ctx ends and never touches coordinator state.
func (c *Coordinator) Run(ctx context.Context, t Ticket, history []model.ChatMessage) Outcome {
	ctx, span := c.tracer.Start(ctx, "exchange.run",
		trace.WithAttributes(
			attribute.Int64("exchange.epoch", int64(t.Epoch)),
			attribute.Int("exchange.history_len", len(history)),
		))
	defer span.End()

	reply, err := c.svc.Complete(ctx, history)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}

	out := Outcome{Ticket: t, Reply: reply, Err: err, Duration: time.Since(t.Started)}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out
}

// Resolve records the outcome if its ticket is current, moving pending to
// succeeded or failed and then back to idle. It returns the resolved state
// and true, or StateIdle and false for a stale outcome.
func (c *Coordinator) Resolve(out Outcome) (State, bool) {
	c.mu.Lock()
	if c.state != StatePending || out.Ticket.Epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Info("EXCHANGE_STALE", "epoch", out.Ticket.Epoch)
		return StateIdle, false
	}

	event := EventSucceed
	if out.Err != nil {
		event = EventFail
	}
	resolved, err := Transition(c.state, event)
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("EXCHANGE_TRANSITION_FAILED", "error", err)
		return StateIdle, false
	}
	c.last = resolved
	c.state, _ = Transition(resolved, EventSettle)
	c.mu.Unlock()

	c.record(out, resolved)
	return resolved, true
}

// Invalidate abandons any in-flight exchange and returns to idle. An outcome
// for an earlier ticket will be reported stale by Resolve.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.state = StateIdle
}

func (c *Coordinator) record(out Outcome, resolved State) {
	attrs := metric.WithAttributes(attribute.String("outcome", string(resolved)))
	ctx := context.Background()
	if c.exchanges != nil {
		c.exchanges.Add(ctx, 1, attrs)
	}
	if c.latency != nil {
		c.latency.Record(ctx, out.Duration.Seconds(), attrs)
	}

	if out.Err != nil {
		c.logger.Warn("EXCHANGE_FAILED",
			"epoch", out.Ticket.Epoch,
			"duration_ms", out.Duration.Milliseconds(),
			"error", out.Err)
		return
	}
	c.logger.Info("EXCHANGE_SUCCEEDED",
		"epoch", out.Ticket.Epoch,
		"duration_ms", out.Duration.Milliseconds(),
		"reply_len", len(out.Reply))
}
