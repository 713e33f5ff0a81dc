// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/dictation"
	"github.com/jeranaias/parley/internal/exchange"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ExchangeDoneMsg carries the outcome of a completion call. Outcomes whose
// ticket is no longer current are discarded by the session.
type ExchangeDoneMsg struct {
	Outcome exchange.Outcome
}

// DictationMsg is a dictation state change.
type DictationMsg struct {
	Snapshot dictation.Snapshot
}

// DictationStartedMsg reports the result of starting a recognizer session.
type DictationStartedMsg struct {
	Err error
}

// TypingPausedMsg fires when the composer settles after typing.
type TypingPausedMsg struct {
	Text string
}

// ConfigReloadedMsg carries a configuration reloaded from disk.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// ExportDoneMsg reports a transcript save.
type ExportDoneMsg struct {
	Path string
	Err  error
}

// =============================================================================
// EVENT BUS
// =============================================================================

// bus carries messages from background goroutines into the Update loop.
// Senders block until the loop reads or the bus closes, so no state change
// is dropped while the program runs.
type bus struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

func newBus() *bus {
	return &bus{
		ch:   make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

func (b *bus) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	case <-b.done:
	}
}

// listen returns a command that waits for the next bus message.
func (b *bus) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.ch:
			return msg
		case <-b.done:
			return nil
		}
	}
}

func (b *bus) close() {
	b.once.Do(func() { close(b.done) })
}
