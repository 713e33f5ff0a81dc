// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exchange

import (
	"errors"
	"fmt"
)

// State is the request lifecycle state.
type State string

// Event drives a State transition.
type Event string

const (
	StateIdle      State = "idle"
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

const (
	EventBegin   Event = "begin"
	EventSucceed Event = "succeed"
	EventFail    Event = "fail"
	EventSettle  Event = "settle"
)

// ErrInvalidTransition is wrapped by Transition for disallowed moves.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition returns the state reached from current by event.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		if event == EventBegin {
			return StatePending, nil
		}
	case StatePending:
		switch event {
		case EventSucceed:
			return StateSucceeded, nil
		case EventFail:
			return StateFailed, nil
		}
	case StateSucceeded, StateFailed:
		if event == EventSettle {
			return StateIdle, nil
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
	return current, fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, current, event)
}
