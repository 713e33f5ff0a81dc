// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dictation turns speech recognizer callbacks into a single
// snapshot of dictation state.
package dictation

import (
	"context"
	"errors"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnsupported is returned by Start when no recognizer is available.
	ErrUnsupported = errors.New("speech recognition not supported")

	// ErrAlreadyListening is returned by Start while a session is active.
	ErrAlreadyListening = errors.New("dictation already listening")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("dictation source closed")
)

// User-facing messages stored in Snapshot.LastError.
const (
	MsgUnsupported      = "Speech recognition not supported"
	MsgPermissionDenied = "Microphone permission denied"
	MsgNoMicrophone     = "No microphone available"
	MsgStartFailed      = "Failed to start speech recognition"
)

// ErrorKind classifies a recognizer error code.
type ErrorKind string

const (
	KindAborted          ErrorKind = "aborted"
	KindNoSpeech         ErrorKind = "no-speech"
	KindPermissionDenied ErrorKind = "not-allowed"
	KindNoMicrophone     ErrorKind = "audio-capture"
	KindUnsupported      ErrorKind = "unsupported"
	KindStartFailed      ErrorKind = "start-failed"
	KindOther            ErrorKind = "other"
)

// Error is the user-visible dictation error kept in a Snapshot.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// =============================================================================
// STATE
// =============================================================================

// Permission is the microphone permission as far as it can be determined.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
	PermissionUnknown Permission = "unknown"
)

// Snapshot is an immutable view of dictation state.
type Snapshot struct {
	IsListening bool
	InterimText string
	FinalText   string
	IsSupported bool
	Permission  Permission
	LastError   *Error

	// Session increments each time a recognizer session starts. Consumers
	// use it to merge each session's final transcript exactly once.
	Session uint64

	// Rev increases with every change; a consumer drops snapshots older
	// than one it has already applied.
	Rev uint64
}

// Options configure one recognition session.
type Options struct {
	Lang       string
	Continuous bool
}

// DefaultOptions returns en-US, single utterance.
func DefaultOptions() Options {
	return Options{Lang: "en-US"}
}

// =============================================================================
// RECOGNIZER COLLABORATOR
// =============================================================================

// Recognizer is a speech-to-text capability.
type Recognizer interface {
	// Supported reports whether sessions can be started at all.
	Supported() bool

	// Permission probes microphone access. It must not block for long.
	Permission(ctx context.Context) Permission

	// Start opens a recognition session.
	Start(ctx context.Context, opts Options) (Session, error)
}

// Session is one active recognition session.
//
// Events must be closed after the final End event. Stop asks for a graceful
// end that still delivers pending finals; Abort ends immediately.
type Session interface {
	Events() <-chan Event
	Stop() error
	Abort() error
}
