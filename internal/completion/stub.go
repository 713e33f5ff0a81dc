// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"time"

	"github.com/jeranaias/parley/internal/model"
)

// DefaultStubDelay is how long the simulated backend takes to answer.
const DefaultStubDelay = 1400 * time.Millisecond

// StubReply returns the simulated reply text for prompt.
func StubReply(prompt string) string {
	return "Simulated AI reply for: " + prompt
}

// Stub answers in-process after a fixed delay. It needs no network and no
// API key, which makes it the fallback when nothing else is configured.
type Stub struct {
	Delay time.Duration
}

// NewStub creates a Stub with the given delay. A negative delay means
// DefaultStubDelay.
func NewStub(delay time.Duration) *Stub {
	if delay < 0 {
		delay = DefaultStubDelay
	}
	return &Stub{Delay: delay}
}

// Complete waits for the delay, or until ctx ends, and echoes the prompt.
func (s *Stub) Complete(ctx context.Context, history []model.ChatMessage) (string, error) {
	prompt, err := lastUserPrompt(history)
	if err != nil {
		return "", err
	}

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return "", err
	}

	return StubReply(prompt), nil
}
