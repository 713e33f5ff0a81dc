// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

const greeting = "Hello! I'm your AI assistant. How can I help you today?"

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{Role("system"), "system"},
	}

	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			if got := tc.role.DisplayName(); got != tc.want {
				t.Errorf("DisplayName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRole_Valid(t *testing.T) {
	if !RoleUser.Valid() || !RoleAssistant.Valid() {
		t.Error("user and assistant roles should be valid")
	}
	if Role("tool").Valid() {
		t.Error("tool role should not be valid")
	}
}

// =============================================================================
// SESSION LOG TESTS
// =============================================================================

func TestNewSessionLog_StartsWithGreeting(t *testing.T) {
	log := NewSessionLog(greeting)

	if log.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", log.Len())
	}
	first := log.Last()
	if first.Role != RoleAssistant {
		t.Errorf("greeting role = %q, want assistant", first.Role)
	}
	if first.Content != greeting {
		t.Errorf("greeting content = %q", first.Content)
	}
	if log.ID() == "" {
		t.Error("session ID should not be empty")
	}
}

func TestSessionLog_AppendKeepsOrderAndUniqueIDs(t *testing.T) {
	log := NewSessionLog(greeting)
	log.Append(RoleUser, "one")
	log.Append(RoleAssistant, "reply one")
	log.Append(RoleUser, "two")
	log.Append(RoleAssistant, "reply two")

	msgs := log.Messages()
	want := []string{greeting, "one", "reply one", "two", "reply two"}
	if len(msgs) != len(want) {
		t.Fatalf("len = %d, want %d", len(msgs), len(want))
	}

	seen := make(map[string]bool)
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Errorf("msgs[%d] = %q, want %q", i, m.Content, want[i])
		}
		if seen[m.ID] {
			t.Errorf("duplicate ID %q", m.ID)
		}
		seen[m.ID] = true
	}

	if got := log.Exchanges(); got != 2 {
		t.Errorf("Exchanges() = %d, want 2", got)
	}
}

func TestSessionLog_MessagesReturnsCopy(t *testing.T) {
	log := NewSessionLog(greeting)
	log.Append(RoleUser, "hello")

	msgs := log.Messages()
	msgs[1].Content = "tampered"

	if got := log.Last().Content; got != "hello" {
		t.Errorf("log content changed through copy: %q", got)
	}
}

func TestSessionLog_History(t *testing.T) {
	log := NewSessionLog(greeting)
	log.Append(RoleUser, "hi")

	hist := log.History()
	if len(hist) != 2 {
		t.Fatalf("len(History()) = %d, want 2", len(hist))
	}
	if hist[0].Role != "assistant" || hist[1].Role != "user" {
		t.Errorf("roles = %q, %q", hist[0].Role, hist[1].Role)
	}
	if hist[1].Content != "hi" {
		t.Errorf("content = %q", hist[1].Content)
	}
}

func TestSessionLog_LastUserContent(t *testing.T) {
	log := NewSessionLog(greeting)
	if got := log.LastUserContent(); got != "" {
		t.Errorf("LastUserContent() on fresh log = %q, want empty", got)
	}

	log.Append(RoleUser, "first")
	log.Append(RoleAssistant, "ok")
	log.Append(RoleUser, "second")
	log.Append(RoleAssistant, "ok")

	if got := log.LastUserContent(); got != "second" {
		t.Errorf("LastUserContent() = %q, want %q", got, "second")
	}
}
