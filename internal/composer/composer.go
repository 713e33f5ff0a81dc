// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package composer owns the editable outbound text buffer and merges typed
// input with finalized dictation.
package composer

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/jeranaias/parley/internal/debounce"
	"github.com/jeranaias/parley/internal/dictation"
)

// =============================================================================
// KEYS
// =============================================================================

// Key names the keys the composer reacts to.
type Key string

const (
	KeyEnter Key = "enter"
	KeyOther Key = "other"
)

// KeyPress is a key with its shift modifier state.
type KeyPress struct {
	Key   Key
	Shift bool
}

// Action is what a key press did.
type Action int

const (
	// ActionNone means the key was not handled by the composer.
	ActionNone Action = iota
	// ActionNewline means a line break was inserted.
	ActionNewline
	// ActionSend means the buffer was committed; read it from HandleKey.
	ActionSend
	// ActionBlocked means Enter was pressed but nothing could be sent.
	ActionBlocked
)

// =============================================================================
// COMPOSER
// =============================================================================

// Composer tracks one text buffer.
//
// Keystrokes replace the buffer immediately. Finalized dictation is
// appended, never substituted, so typed text is not lost. A debounce filter
// shadows the buffer and reports when the user pauses typing.
type Composer struct {
	mu sync.Mutex

	text      string
	disabled  bool
	listening bool
	interim   string

	// lastMerged is the dictation session whose final transcript has
	// already been appended.
	lastMerged uint64
	lastRev    uint64

	filter  *debounce.Filter[string]
	onPause func(string)
}

// Option configures a Composer.
type Option func(*config)

type config struct {
	interval time.Duration
	clock    debounce.Clock
	onPause  func(string)
}

// WithPauseInterval sets the quiet period before OnPause fires.
func WithPauseInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

// WithClock sets the clock used by the pause detector.
func WithClock(clock debounce.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithOnPause registers the "user paused typing" callback. It receives the
// trimmed settled text and is not called for blank text.
func WithOnPause(fn func(string)) Option {
	return func(c *config) { c.onPause = fn }
}

// New creates an empty Composer.
func New(opts ...Option) *Composer {
	cfg := config{interval: debounce.DefaultInterval}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Composer{onPause: cfg.onPause}
	var fopts []debounce.Option
	if cfg.clock != nil {
		fopts = append(fopts, debounce.WithClock(cfg.clock))
	}
	c.filter = debounce.New[string](cfg.interval, c.settled, fopts...)
	return c
}

// Text returns the current buffer.
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Settled returns the debounced shadow of the buffer.
func (c *Composer) Settled() string {
	return c.filter.Settled()
}

// Typing reports whether a keystroke is waiting for the quiet period.
func (c *Composer) Typing() bool {
	return c.filter.Pending()
}

// SetText replaces the buffer with a keystroke edit.
func (c *Composer) SetText(s string) {
	c.mu.Lock()
	c.text = s
	c.mu.Unlock()
	c.filter.Push(s)
}

// AppendTranscript appends finalized speech to the buffer and returns the
// new buffer.
func (c *Composer) AppendTranscript(transcript string) string {
	c.mu.Lock()
	c.text = Merge(c.text, transcript)
	text := c.text
	c.mu.Unlock()
	c.filter.Push(text)
	return text
}

// ApplyDictation updates the composer from a dictation snapshot. When the
// snapshot shows a finished session with a final transcript that has not
// been merged yet, it is appended and ApplyDictation returns true.
// Snapshots older than one already applied are ignored.
func (c *Composer) ApplyDictation(s dictation.Snapshot) bool {
	c.mu.Lock()
	if s.Rev != 0 && s.Rev < c.lastRev {
		c.mu.Unlock()
		return false
	}
	c.lastRev = s.Rev
	c.listening = s.IsListening
	c.interim = ""
	if s.IsListening {
		c.interim = s.InterimText
	}

	if s.IsListening || strings.TrimSpace(s.FinalText) == "" || s.Session == c.lastMerged {
		c.mu.Unlock()
		return false
	}
	c.lastMerged = s.Session
	c.text = Merge(c.text, s.FinalText)
	text := c.text
	c.mu.Unlock()

	c.filter.Push(text)
	return true
}

// Interim returns the live dictation preview. It is only non-empty while
// listening and is never part of the buffer.
func (c *Composer) Interim() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interim
}

// Listening reports whether dictation is active.
func (c *Composer) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// SetDisabled mirrors the pending state of the request coordinator. It
// returns true when the composer just became ready again, which is when
// the caller should restore input focus.
func (c *Composer) SetDisabled(disabled bool) (ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ready = c.disabled && !disabled
	c.disabled = disabled
	return ready
}

// Disabled reports whether sending is currently blocked by a pending request.
func (c *Composer) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// CanSend reports whether a send control should be enabled: not disabled,
// and not listening with an empty buffer.
func (c *Composer) CanSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return false
	}
	return !(c.listening && strings.TrimSpace(c.text) == "")
}

// Commit emits the trimmed buffer as a send intent and clears the buffer.
// It does nothing and keeps the buffer when the trimmed buffer is empty or
// the composer is disabled.
func (c *Composer) Commit() (string, bool) {
	c.mu.Lock()
	msg := strings.TrimSpace(c.text)
	if msg == "" || c.disabled {
		c.mu.Unlock()
		return "", false
	}
	c.text = ""
	c.mu.Unlock()

	c.filter.Push("")
	return msg, true
}

// HandleKey applies a key press. Enter without shift commits; Shift+Enter
// inserts a newline and never commits. The committed text is returned with
// ActionSend.
func (c *Composer) HandleKey(k KeyPress) (Action, string) {
	if k.Key != KeyEnter {
		return ActionNone, ""
	}
	if k.Shift {
		c.mu.Lock()
		c.text += "\n"
		text := c.text
		c.mu.Unlock()
		c.filter.Push(text)
		return ActionNewline, ""
	}
	if msg, ok := c.Commit(); ok {
		return ActionSend, msg
	}
	return ActionBlocked, ""
}

// Close cancels the pause detector.
func (c *Composer) Close() {
	c.filter.Close()
}

func (c *Composer) settled(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || c.onPause == nil {
		return
	}
	c.onPause(trimmed)
}

// =============================================================================
// MERGE
// =============================================================================

// Merge appends a transcript to a buffer: joined by a single space when the
// buffer has content, the transcript alone otherwise, with whitespace runs
// collapsed to one space.
func Merge(buffer, transcript string) string {
	t := strings.TrimSpace(transcript)
	var merged string
	if b := strings.TrimSpace(buffer); b != "" {
		merged = b + " " + t
	} else {
		merged = t
	}
	return collapse(merged)
}

// collapse replaces every whitespace run with one space.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
