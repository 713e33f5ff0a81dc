// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session composes the session log, the request coordinator and the
// localizer into the chat session controller.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/parley/internal/completion"
	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/i18n"
	"github.com/jeranaias/parley/internal/model"
)

// ErrEmptyMessage is returned by Submit for blank text.
var ErrEmptyMessage = errors.New("message is empty")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("session closed")

// Archiver persists a finished session.
type Archiver interface {
	Archive(ctx context.Context, log *model.SessionLog, language string) error
}

// Pending is an accepted send waiting for its reply.
type Pending struct {
	Ticket  exchange.Ticket
	User    model.Message
	History []model.ChatMessage
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the session log.
//
// Submit appends the user's message before any network call so it stays
// visible if the request fails. Settle appends exactly one assistant
// message per accepted send: the reply, or the localized apology.
type Controller struct {
	log    *model.SessionLog
	coord  *exchange.Coordinator
	loc    *i18n.Localizer
	logger *slog.Logger

	archiver       Archiver
	archiveTimeout time.Duration

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithArchiver saves the log on Close when at least one exchange completed.
func WithArchiver(a Archiver) Option {
	return func(c *Controller) { c.archiver = a }
}

// New starts a session whose log holds the localized greeting.
func New(svc completion.Service, loc *i18n.Localizer, opts ...Option) *Controller {
	if loc == nil {
		loc = i18n.MustNew(i18n.Fallback)
	}
	c := &Controller{
		loc:            loc,
		logger:         slog.Default(),
		archiveTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.coord = exchange.NewCoordinator(svc, c.logger)
	c.log = model.NewSessionLog(loc.T(i18n.KeyGreeting))
	c.logger.Info("SESSION_STARTED", "session", c.log.ID(), "lang", loc.Language())
	return c
}

// Log returns the session log.
func (c *Controller) Log() *model.SessionLog {
	return c.log
}

// Localizer returns the localizer the session translates with.
func (c *Controller) Localizer() *i18n.Localizer {
	return c.loc
}

// Pending reports whether an exchange is outstanding.
func (c *Controller) Pending() bool {
	return c.coord.Pending()
}

// State returns the request lifecycle state.
func (c *Controller) State() exchange.State {
	return c.coord.State()
}

// LastResult reports how the most recent exchange resolved, or
// exchange.StateIdle before the first one.
func (c *Controller) LastResult() exchange.State {
	return c.coord.LastResult()
}

// Submit accepts a committed send. While an exchange is pending it returns
// exchange.ErrPending and the log is untouched.
func (c *Controller) Submit(text string) (Pending, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Pending{}, ErrEmptyMessage
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Pending{}, ErrClosed
	}

	ticket, err := c.coord.Begin()
	if err != nil {
		c.logger.Info("SEND_REJECTED", "session", c.log.ID(), "reason", err)
		return Pending{}, err
	}

	user := c.log.Append(model.RoleUser, text)
	return Pending{Ticket: ticket, User: user, History: c.log.History()}, nil
}

// Await runs the exchange for p. The call is cancelled when the controller
// closes.
func (c *Controller) Await(ctx context.Context, p Pending) exchange.Outcome {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	return c.coord.Run(ctx, p.Ticket, p.History)
}

// Settle reconciles an outcome into the log and returns the appended
// assistant message. Stale outcomes return false and append nothing.
func (c *Controller) Settle(out exchange.Outcome) (model.Message, bool) {
	state, ok := c.coord.Resolve(out)
	if !ok {
		return model.Message{}, false
	}

	if state == exchange.StateSucceeded {
		return c.log.Append(model.RoleAssistant, out.Reply), true
	}
	c.logger.Warn("EXCHANGE_APOLOGY", "session", c.log.ID(), "error", out.Err)
	return c.log.Append(model.RoleAssistant, c.loc.T(i18n.KeyApology)), true
}

// Exchange runs Submit, Await and Settle in sequence.
func (c *Controller) Exchange(ctx context.Context, text string) (model.Message, error) {
	p, err := c.Submit(text)
	if err != nil {
		return model.Message{}, err
	}
	msg, ok := c.Settle(c.Await(ctx, p))
	if !ok {
		return model.Message{}, ErrClosed
	}
	return msg, nil
}

// Close abandons any in-flight exchange and archives the log when an
// archiver is configured and the session has at least one exchange. It is
// safe to call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.coord.Invalidate()
	c.logger.Info("SESSION_CLOSED", "session", c.log.ID(), "exchanges", c.log.Exchanges())

	if c.archiver == nil || c.log.Exchanges() == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.archiveTimeout)
	defer cancel()
	return c.archiver.Archive(ctx, c.log, c.loc.Language())
}
