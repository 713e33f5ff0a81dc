// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package debounce emits a settled value once its source has been quiet for
// a fixed interval.
package debounce

import (
	"sync"
	"time"
)

// DefaultInterval is the quiet period used for "user paused typing".
const DefaultInterval = 600 * time.Millisecond

// =============================================================================
// FILTER
// =============================================================================

// Filter tracks a rapidly changing value and settles it after a quiet period.
//
// Every Push cancels the pending scheduled task and schedules a new one.
// The task firing is the only place the settled value changes. After Close,
// nothing fires, including a task whose timer expired concurrently with
// Close.
type Filter[T any] struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	onSettle func(T)

	pending Timer
	gen     uint64
	settled T
	closed  bool
}

// Option configures a Filter.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock overrides the clock used to schedule settle tasks.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New creates a Filter. onSettle may be nil.
func New[T any](interval time.Duration, onSettle func(T), opts ...Option) *Filter[T] {
	o := options{clock: RealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Filter[T]{
		clock:    o.clock,
		interval: interval,
		onSettle: onSettle,
	}
}

// Push records a new source value and restarts the quiet period.
func (f *Filter[T]) Push(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	if f.pending != nil {
		f.pending.Stop()
	}
	f.gen++
	gen := f.gen
	f.pending = f.clock.AfterFunc(f.interval, func() {
		f.fire(gen, v)
	})
}

// fire settles v if no newer Push or Close happened since it was scheduled.
func (f *Filter[T]) fire(gen uint64, v T) {
	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		return
	}
	f.settled = v
	f.pending = nil
	cb := f.onSettle
	f.mu.Unlock()

	if cb != nil {
		cb(v)
	}
}

// Settled returns the most recently settled value.
func (f *Filter[T]) Settled() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Pending reports whether a settle task is scheduled.
func (f *Filter[T]) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending != nil
}

// Interval returns the quiet period.
func (f *Filter[T]) Interval() time.Duration {
	return f.interval
}

// Close cancels any pending task. It is safe to call more than once.
func (f *Filter[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.gen++
	if f.pending != nil {
		f.pending.Stop()
		f.pending = nil
	}
}
