// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dictation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func listening() Snapshot {
	return Snapshot{IsListening: true, IsSupported: true, Permission: PermissionGranted}
}

func TestReduce_StartClearsErrorAndListens(t *testing.T) {
	s := Snapshot{LastError: &Error{Kind: KindOther, Message: "network"}}

	s = Reduce(s, Started())

	require.True(t, s.IsListening)
	require.Nil(t, s.LastError)
}

func TestReduce_ResultPartitionsFromResultIndex(t *testing.T) {
	s := listening()
	s.FinalText = "already said"

	s = Reduce(s, Event{
		Type:        EventResult,
		ResultIndex: 1,
		Results: []Result{
			{Transcript: "already said", Final: true}, // before ResultIndex, ignored
			{Transcript: "  hello ", Final: true},
			{Transcript: "wor"},
			{Transcript: "world", Final: true},
			{Transcript: "ld and"},
		},
	})

	require.Equal(t, "already said hello world", s.FinalText)
	require.Equal(t, "world and", s.InterimText)
}

func TestReduce_InterimReplacedWholesale(t *testing.T) {
	s := listening()

	s = Reduce(s, Partial("hel"))
	require.Equal(t, "hel", s.InterimText)

	s = Reduce(s, Partial("hello th"))
	require.Equal(t, "hello th", s.InterimText)

	s = Reduce(s, Final("hello there"))
	require.Equal(t, "", s.InterimText)
	require.Equal(t, "hello there", s.FinalText)
}

func TestReduce_FinalsAccumulateCollapsed(t *testing.T) {
	s := listening()

	s = Reduce(s, Final("one   two"))
	s = Reduce(s, Final(" three "))

	require.Equal(t, "one two three", s.FinalText)
}

func TestReduce_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		code          string
		wantListening bool
		wantErr       *Error
	}{
		{name: "aborted is swallowed", code: "aborted", wantListening: true, wantErr: nil},
		{name: "no speech ends quietly", code: "no-speech", wantListening: false, wantErr: nil},
		{
			name:          "permission denied",
			code:          "not-allowed",
			wantListening: false,
			wantErr:       &Error{Kind: KindPermissionDenied, Message: "Microphone permission denied"},
		},
		{
			name:          "no microphone",
			code:          "audio-capture",
			wantListening: false,
			wantErr:       &Error{Kind: KindNoMicrophone, Message: "No microphone available"},
		},
		{
			name:          "other code is stringified",
			code:          "network",
			wantListening: false,
			wantErr:       &Error{Kind: KindOther, Message: "network"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := Reduce(listening(), Failed(tc.code))
			require.Equal(t, tc.wantListening, s.IsListening)
			require.Equal(t, tc.wantErr, s.LastError)
		})
	}
}

func TestReduce_AbortedKeepsExistingError(t *testing.T) {
	s := listening()
	s.IsListening = false
	s.LastError = &Error{Kind: KindOther, Message: "earlier"}

	next := Reduce(s, Failed("aborted"))

	require.Equal(t, s, next)
}

func TestReduce_EndAlwaysClearsListening(t *testing.T) {
	s := listening()
	s.FinalText = "kept"

	s = Reduce(s, Ended())

	require.False(t, s.IsListening)
	require.Equal(t, "kept", s.FinalText)
}
