// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dictation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeSession struct {
	events  chan Event
	mu      sync.Mutex
	stops   int
	aborts  int
	closed  bool
	stopErr error
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan Event, 16)}
}

func (f *fakeSession) Events() <-chan Event { return f.events }

func (f *fakeSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopErr
}

func (f *fakeSession) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	f.finishLocked()
	return errors.New("abort failed")
}

func (f *fakeSession) emit(evs ...Event) {
	for _, ev := range evs {
		f.events <- ev
	}
}

func (f *fakeSession) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishLocked()
}

func (f *fakeSession) finishLocked() {
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *fakeSession) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops, f.aborts
}

type fakeRecognizer struct {
	supported bool
	perm      Permission
	startErr  error
	sessions  []*fakeSession
	lastOpts  Options
}

func (f *fakeRecognizer) Supported() bool { return f.supported }

func (f *fakeRecognizer) Permission(context.Context) Permission { return f.perm }

func (f *fakeRecognizer) Start(_ context.Context, opts Options) (Session, error) {
	f.lastOpts = opts
	if f.startErr != nil {
		return nil, f.startErr
	}
	s := newFakeSession()
	f.sessions = append(f.sessions, s)
	return s, nil
}

// waitFor polls the source until cond holds.
func waitFor(t *testing.T, src *Source, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = src.Snapshot()
		return cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

// =============================================================================
// TESTS
// =============================================================================

func TestSource_StartUnsupportedFailsFast(t *testing.T) {
	src := NewSource(nil, nil)

	err := src.Start(context.Background(), DefaultOptions())

	require.ErrorIs(t, err, ErrUnsupported)
	snap := src.Snapshot()
	require.False(t, snap.IsListening)
	require.False(t, snap.IsSupported)
	require.NotNil(t, snap.LastError)
	require.Equal(t, MsgUnsupported, snap.LastError.Message)
}

func TestSource_StartClearsTranscriptsAndListens(t *testing.T) {
	rec := &fakeRecognizer{supported: true}
	src := NewSource(rec, nil)

	require.NoError(t, src.Start(context.Background(), Options{Lang: "fr-FR"}))
	require.Equal(t, "fr-FR", rec.lastOpts.Lang)
	sess := rec.sessions[0]
	sess.emit(Started(), Final("bonjour"))
	waitFor(t, src, func(s Snapshot) bool { return s.FinalText == "bonjour" })

	sess.emit(Ended())
	sess.finish()
	waitFor(t, src, func(s Snapshot) bool { return !s.IsListening })

	require.NoError(t, src.Start(context.Background(), DefaultOptions()))
	snap := src.Snapshot()
	require.True(t, snap.IsListening)
	require.Equal(t, "", snap.FinalText)
	require.Equal(t, "", snap.InterimText)
	require.Equal(t, uint64(2), snap.Session)
}

func TestSource_OnlyOneSessionAtATime(t *testing.T) {
	rec := &fakeRecognizer{supported: true}
	src := NewSource(rec, nil)

	require.NoError(t, src.Start(context.Background(), DefaultOptions()))
	err := src.Start(context.Background(), DefaultOptions())

	require.ErrorIs(t, err, ErrAlreadyListening)
	require.Len(t, rec.sessions, 1)
}

func TestSource_StopIsIdempotentAndClearsInterim(t *testing.T) {
	rec := &fakeRecognizer{supported: true}
	src := NewSource(rec, nil)

	src.Stop() // not listening: safe

	require.NoError(t, src.Start(context.Background(), DefaultOptions()))
	sess := rec.sessions[0]
	sess.emit(Final("keep this"), Partial("drop th"))
	waitFor(t, src, func(s Snapshot) bool { return s.InterimText == "drop th" })

	src.Stop()
	src.Stop()

	snap := src.Snapshot()
	require.Equal(t, "", snap.InterimText)
	require.Equal(t, "keep this", snap.FinalText)
	stops, _ := sess.counts()
	require.Equal(t, 2, stops)

	sess.emit(Failed("aborted"), Ended())
	sess.finish()
	snap = waitFor(t, src, func(s Snapshot) bool { return !s.IsListening })
	require.Nil(t, snap.LastError)
	require.Equal(t, "keep this", snap.FinalText)
}

func TestSource_PermissionDeniedEndsListening(t *testing.T) {
	rec := &fakeRecognizer{supported: true}
	src := NewSource(rec, nil)

	require.NoError(t, src.Start(context.Background(), DefaultOptions()))
	rec.sessions[0].emit(Failed("not-allowed"))

	snap := waitFor(t, src, func(s Snapshot) bool { return s.LastError != nil })
	require.False(t, snap.IsListening)
	require.Equal(t, KindPermissionDenied, snap.LastError.Kind)
}

func TestSource_StartErrorSetsLastError(t *testing.T) {
	rec := &fakeRecognizer{
		supported: true,
		startErr:  &Error{Kind: KindNoMicrophone, Message: MsgNoMicrophone},
	}
	src := NewSource(rec, nil)

	err := src.Start(context.Background(), DefaultOptions())

	require.Error(t, err)
	snap := src.Snapshot()
	require.False(t, snap.IsListening)
	require.Equal(t, MsgNoMicrophone, snap.LastError.Message)

	rec.startErr = errors.New("")
	require.Error(t, src.Start(context.Background(), DefaultOptions()))
	require.Equal(t, MsgStartFailed, src.Snapshot().LastError.Message)
}

func TestSource_ChannelCloseWithoutEndStopsListening(t *testing.T) {
	rec := &fakeRecognizer{supported: true}
	src := NewSource(rec, nil)

	require.NoError(t, src.Start(context.Background(), DefaultOptions()))
	rec.sessions[0].finish()

	waitFor(t, src, func(s Snapshot) bool { return !s.IsListening })
}

func TestSource_StaleSessionEventsIgnored(t *testing.T) {
	rec := &fakeRecognizer{supported: true}
	src := NewSource(rec, nil)

	require.NoError(t, src.Start(context.Background(), DefaultOptions()))
	first := src.Snapshot().Session
	rec.sessions[0].emit(Ended())
	rec.sessions[0].finish()
	waitFor(t, src, func(s Snapshot) bool { return !s.IsListening })

	require.NoError(t, src.Start(context.Background(), DefaultOptions()))
	src.Dispatch(first, Final("from the old session"))

	require.Equal(t, "", src.Snapshot().FinalText)
}

func TestSource_CloseStopsAndAbortsQuietly(t *testing.T) {
	rec := &fakeRecognizer{supported: true}
	src := NewSource(rec, nil)

	var mu sync.Mutex
	var notified int
	src.OnChange(func(Snapshot) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	require.NoError(t, src.Start(context.Background(), DefaultOptions()))
	sess := rec.sessions[0]
	sess.mu.Lock()
	sess.stopErr = errors.New("stop failed")
	sess.mu.Unlock()

	require.NotPanics(t, src.Close)
	src.Close()

	stops, aborts := sess.counts()
	require.Equal(t, 1, stops)
	require.Equal(t, 1, aborts)

	mu.Lock()
	before := notified
	mu.Unlock()
	src.Dispatch(src.Snapshot().Session, Final("late"))
	mu.Lock()
	require.Equal(t, before, notified)
	mu.Unlock()

	require.ErrorIs(t, src.Start(context.Background(), DefaultOptions()), ErrClosed)
	require.False(t, src.Snapshot().IsListening)
}

func TestSource_ListenerSeesIncreasingRevisions(t *testing.T) {
	rec := &fakeRecognizer{supported: true}
	src := NewSource(rec, nil)

	var mu sync.Mutex
	var revs []uint64
	src.OnChange(func(s Snapshot) {
		mu.Lock()
		revs = append(revs, s.Rev)
		mu.Unlock()
	})

	require.NoError(t, src.Start(context.Background(), DefaultOptions()))
	src.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(revs), 3)
	for i := 1; i < len(revs); i++ {
		require.Greater(t, revs[i], revs[i-1])
	}
}

func TestSource_RefreshPermission(t *testing.T) {
	rec := &fakeRecognizer{supported: true, perm: PermissionDenied}
	src := NewSource(rec, nil)

	require.Equal(t, PermissionUnknown, src.Snapshot().Permission)
	require.Equal(t, PermissionDenied, src.RefreshPermission(context.Background()))
	require.Equal(t, PermissionDenied, src.Snapshot().Permission)

	require.Equal(t, PermissionUnknown, NewSource(nil, nil).RefreshPermission(context.Background()))
}
