// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dictation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// =============================================================================
// SOURCE
// =============================================================================

// Source owns dictation state for one composer.
//
// State changes only through Start, Stop, Close and events from the active
// recognizer session, which are applied with Reduce. Listeners receive a
// fresh Snapshot after every change; Snapshot.Rev orders them.
type Source struct {
	logger *slog.Logger
	rec    Recognizer

	mu       sync.Mutex
	snap     Snapshot
	rev      uint64
	active   Session
	starting bool
	closed   bool
	listener func(Snapshot)
}

// NewSource creates a Source. A nil recognizer yields an unsupported source.
func NewSource(rec Recognizer, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	supported := rec != nil && rec.Supported()
	return &Source{
		logger: logger,
		rec:    rec,
		snap: Snapshot{
			IsSupported: supported,
			Permission:  PermissionUnknown,
		},
	}
}

// OnChange registers the snapshot listener. It replaces any previous one.
func (s *Source) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

// Snapshot returns the current state.
func (s *Source) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// RefreshPermission probes the recognizer for microphone permission.
func (s *Source) RefreshPermission(ctx context.Context) Permission {
	p := PermissionUnknown
	if s.rec != nil {
		p = s.rec.Permission(ctx)
	}
	s.update(func(snap *Snapshot) {
		snap.Permission = p
	})
	return p
}

// Start opens a new recognition session.
//
// It fails fast with ErrUnsupported when no recognizer is usable. On success
// the previous transcripts are cleared and IsListening is true.
func (s *Source) Start(ctx context.Context, opts Options) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.snap.IsSupported {
		s.snap.LastError = &Error{Kind: KindUnsupported, Message: MsgUnsupported}
		snap, fn := s.changedLocked()
		s.mu.Unlock()
		s.notify(fn, snap)
		return ErrUnsupported
	}
	if s.active != nil || s.starting {
		s.mu.Unlock()
		return ErrAlreadyListening
	}
	s.starting = true
	s.snap.FinalText = ""
	s.snap.InterimText = ""
	s.snap.Session++
	session := s.snap.Session
	snap, fn := s.changedLocked()
	s.mu.Unlock()
	s.notify(fn, snap)

	sess, err := s.rec.Start(ctx, opts)

	s.mu.Lock()
	s.starting = false
	if err != nil {
		s.snap.LastError = startError(err)
		s.snap.IsListening = false
		snap, fn := s.changedLocked()
		s.mu.Unlock()
		s.logger.Warn("DICTATION_START_FAILED", "session", session, "error", err)
		s.notify(fn, snap)
		return err
	}
	if s.closed {
		s.mu.Unlock()
		bestEffort(sess.Stop)
		bestEffort(sess.Abort)
		return ErrClosed
	}
	s.active = sess
	s.snap.IsListening = true
	s.snap.LastError = nil
	snap, fn = s.changedLocked()
	s.mu.Unlock()

	s.logger.Info("DICTATION_STARTED", "session", session, "lang", opts.Lang, "continuous", opts.Continuous)
	s.notify(fn, snap)

	go s.pump(session, sess)
	return nil
}

// Stop asks the active session to finish. It clears the interim preview and
// keeps the final transcript. Calling Stop when not listening is a no-op
// apart from clearing the preview.
func (s *Source) Stop() {
	s.mu.Lock()
	sess := s.active
	s.snap.InterimText = ""
	snap, fn := s.changedLocked()
	s.mu.Unlock()

	s.notify(fn, snap)

	if sess == nil {
		return
	}
	if err := sess.Stop(); err != nil {
		s.logger.Debug("DICTATION_STOP_ERROR", "error", err)
	}
}

// Close stops and aborts any active session and detaches the listener.
// Errors during cleanup are discarded.
func (s *Source) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sess := s.active
	s.active = nil
	s.listener = nil
	s.snap.IsListening = false
	s.snap.InterimText = ""
	s.mu.Unlock()

	if sess != nil {
		bestEffort(sess.Stop)
		bestEffort(sess.Abort)
	}
}

// Dispatch applies ev to the state if it belongs to the current session.
func (s *Source) Dispatch(session uint64, ev Event) {
	s.mu.Lock()
	if s.closed || session != s.snap.Session {
		s.mu.Unlock()
		return
	}
	if ev.Type == EventError && ev.Code != string(KindAborted) {
		s.logger.Info("DICTATION_ERROR", "session", session, "code", ev.Code)
	}
	s.snap = Reduce(s.snap, ev)
	if ev.Type == EventEnd {
		s.active = nil
	}
	snap, fn := s.changedLocked()
	s.mu.Unlock()

	s.notify(fn, snap)
}

// pump feeds session events into Dispatch until the session closes its
// event channel.
func (s *Source) pump(session uint64, sess Session) {
	for ev := range sess.Events() {
		s.Dispatch(session, ev)
	}

	s.mu.Lock()
	if s.closed || session != s.snap.Session {
		s.mu.Unlock()
		return
	}
	if s.active == sess {
		s.active = nil
	}
	if !s.snap.IsListening {
		s.mu.Unlock()
		return
	}
	// The channel closed without an end event.
	s.snap = Reduce(s.snap, Ended())
	snap, fn := s.changedLocked()
	s.mu.Unlock()

	s.notify(fn, snap)
}

func (s *Source) update(mut func(*Snapshot)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	mut(&s.snap)
	snap, fn := s.changedLocked()
	s.mu.Unlock()
	s.notify(fn, snap)
}

func (s *Source) changedLocked() (Snapshot, func(Snapshot)) {
	s.rev++
	return s.snapshotLocked(), s.listener
}

func (s *Source) snapshotLocked() Snapshot {
	snap := s.snap
	snap.Rev = s.rev
	if s.snap.LastError != nil {
		e := *s.snap.LastError
		snap.LastError = &e
	}
	return snap
}

func (s *Source) notify(fn func(Snapshot), snap Snapshot) {
	if fn != nil {
		fn(snap)
	}
}

func startError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		e := *de
		return &e
	}
	msg := err.Error()
	if msg == "" {
		msg = MsgStartFailed
	}
	return &Error{Kind: KindStartFailed, Message: msg}
}

// bestEffort runs a cleanup step and discards any error or panic.
func bestEffort(fn func() error) {
	defer func() { _ = recover() }()
	_ = fn()
}
