// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dictation

import "strings"

// =============================================================================
// REDUCER
// =============================================================================

// Reduce applies one recognizer event to a snapshot and returns the result.
func Reduce(s Snapshot, ev Event) Snapshot {
	switch ev.Type {
	case EventStart:
		s.IsListening = true
		s.LastError = nil

	case EventResult:
		finals, interim := partition(ev)
		if finals != "" {
			s.FinalText = normalize(s.FinalText + " " + finals)
		}
		s.InterimText = interim

	case EventError:
		return reduceError(s, ev.Code)

	case EventEnd:
		s.IsListening = false
	}
	return s
}

// partition splits results from the event's start index into the
// space-joined final pieces and the concatenated interim preview.
func partition(ev Event) (finals string, interim string) {
	start := ev.ResultIndex
	if start < 0 {
		start = 0
	}
	var f []string
	var b strings.Builder
	for i := start; i < len(ev.Results); i++ {
		r := ev.Results[i]
		if r.Final {
			f = append(f, r.Transcript)
		} else {
			b.WriteString(r.Transcript)
		}
	}
	return normalize(strings.Join(f, " ")), b.String()
}

func reduceError(s Snapshot, code string) Snapshot {
	switch ErrorKind(code) {
	case KindAborted:
		return s
	case KindNoSpeech:
		s.IsListening = false
	case KindPermissionDenied:
		s.LastError = &Error{Kind: KindPermissionDenied, Message: MsgPermissionDenied}
		s.IsListening = false
	case KindNoMicrophone:
		s.LastError = &Error{Kind: KindNoMicrophone, Message: MsgNoMicrophone}
		s.IsListening = false
	default:
		s.LastError = &Error{Kind: KindOther, Message: code}
		s.IsListening = false
	}
	return s
}

// normalize trims and collapses whitespace runs to a single space.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
