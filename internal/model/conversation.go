// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"time"
)

// =============================================================================
// SESSION LOG
// =============================================================================

// SessionLog is the ordered, append-only record of a chat session.
//
// A log starts with exactly one assistant greeting and grows by one message
// per accepted send and one per resolved or failed request. It never
// shrinks. It is safe for concurrent use.
type SessionLog struct {
	mu        sync.RWMutex
	id        string
	startedAt time.Time
	messages  []Message
}

// NewSessionLog creates a log seeded with the assistant greeting.
func NewSessionLog(greeting string) *SessionLog {
	return &SessionLog{
		id:        generateID(),
		startedAt: time.Now(),
		messages:  []Message{NewMessage(RoleAssistant, greeting)},
	}
}

// ID returns the session identifier.
func (l *SessionLog) ID() string {
	return l.id
}

// StartedAt returns when the session began.
func (l *SessionLog) StartedAt() time.Time {
	return l.startedAt
}

// Append adds a new message to the end of the log and returns it.
func (l *SessionLog) Append(role Role, content string) Message {
	msg := NewMessage(role, content)
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
	return msg
}

// Len returns the number of messages in the log.
func (l *SessionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Messages returns a copy of all messages in order.
func (l *SessionLog) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Last returns the most recent message.
func (l *SessionLog) Last() Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.messages[len(l.messages)-1]
}

// Exchanges returns the number of completed user/assistant pairs.
func (l *SessionLog) Exchanges() int {
	return (l.Len() - 1) / 2
}

// History returns the log as role/content pairs in conversational order,
// ready to send to a completion service.
func (l *SessionLog) History() []ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ChatMessage, 0, len(l.messages))
	for _, m := range l.messages {
		out = append(out, m.ChatMessage())
	}
	return out
}

// LastUserContent returns the content of the latest user message, or ""
// if the user has not spoken yet.
func (l *SessionLog) LastUserContent() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].IsUser() {
			return l.messages[i].Content
		}
	}
	return ""
}
