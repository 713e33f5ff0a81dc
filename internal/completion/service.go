// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/parley/internal/model"
)

// Service accepts an ordered list of role-tagged messages and returns the
// generated reply text or an error.
type Service interface {
	Complete(ctx context.Context, history []model.ChatMessage) (string, error)
}

// Func adapts a function to Service.
type Func func(ctx context.Context, history []model.ChatMessage) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, history []model.ChatMessage) (string, error) {
	return f(ctx, history)
}

var (
	// ErrMalformedReply is returned when a reply payload cannot be decoded
	// or does not contain text.
	ErrMalformedReply = errors.New("malformed completion reply")

	// ErrNoPrompt is returned when the history has no user message.
	ErrNoPrompt = errors.New("no user prompt in history")
)

// StatusError is a non-success HTTP response from a completion endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("completion endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion endpoint returned status %d: %s", e.StatusCode, e.Message)
}

// lastUserPrompt returns the content of the latest user message.
func lastUserPrompt(history []model.ChatMessage) (string, error) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == string(model.RoleUser) {
			return history[i].Content, nil
		}
	}
	return "", ErrNoPrompt
}
