// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dictation turns speech recognizer callbacks into a single
// snapshot of dictation state.
//
// # Key Types
//
//   - Source: Owns the state for one composer, drives Start/Stop/Close
//   - Snapshot: Listening flag, interim and final transcripts, permission, last error
//   - Event: Tagged recognizer callback (start, result, error, end)
//   - Recognizer/Session: The speech capability collaborator
//
// # State Changes
//
// Asynchronous recognizer events go through the pure Reduce function. Final
// results accumulate into FinalText; interim results replace InterimText
// wholesale. Error codes are classified: "aborted" is swallowed, "no-speech"
// ends listening quietly, "not-allowed" and "audio-capture" set a
// user-facing error, and anything else is reported verbatim.
//
// # Usage
//
//	src := dictation.NewSource(recognizer, logger)
//	src.OnChange(func(s dictation.Snapshot) { program.Send(s) })
//	if err := src.Start(ctx, dictation.DefaultOptions()); err != nil {
//	    // LastError already describes the failure
//	}
//	defer src.Close()
package dictation
