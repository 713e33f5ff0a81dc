// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dictation

// EventType tags a recognizer event.
type EventType string

const (
	EventStart  EventType = "start"
	EventResult EventType = "result"
	EventError  EventType = "error"
	EventEnd    EventType = "end"
)

// Result is one recognition hypothesis.
type Result struct {
	Transcript string
	Final      bool
}

// Event is a tagged recognizer callback.
//
// For EventResult, Results holds the recognizer's result list and
// ResultIndex the first entry that changed. For EventError, Code holds the
// recognizer error code.
type Event struct {
	Type        EventType
	ResultIndex int
	Results     []Result
	Code        string
}

// Started returns a start event.
func Started() Event {
	return Event{Type: EventStart}
}

// Partial returns a result event with one interim hypothesis.
func Partial(text string) Event {
	return Event{Type: EventResult, Results: []Result{{Transcript: text}}}
}

// Final returns a result event with one final hypothesis.
func Final(text string) Event {
	return Event{Type: EventResult, Results: []Result{{Transcript: text, Final: true}}}
}

// Failed returns an error event with the given code.
func Failed(code string) Event {
	return Event{Type: EventError, Code: code}
}

// Ended returns an end event.
func Ended() Event {
	return Event{Type: EventEnd}
}
