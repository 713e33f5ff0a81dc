// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech provides the concrete dictation recognizer.
//
// Audio is captured from the default PulseAudio source as 16 kHz mono
// linear PCM and streamed over a websocket to a Deepgram-compatible
// /v1/listen endpoint. Provider transcripts become dictation result events.
//
// # Key Types
//
//   - Recognizer: implements dictation.Recognizer
//   - Microphone: capture abstraction, PulseMicrophone in production
//
// # Error Codes
//
//   - audio-capture: the microphone could not be opened
//   - not-allowed: the provider rejected the API key (401/403)
//   - network: dial or stream failure
//   - no-speech: nothing was heard before the no-speech timeout
//   - aborted: the session was aborted
//
// # Usage
//
//	rec := speech.NewRecognizer(speech.Config{APIKey: key}, speech.NewPulseMicrophone())
//	src := dictation.NewSource(rec, logger)
//	err := src.Start(ctx, dictation.Options{Lang: "en-US", Continuous: true})
package speech
