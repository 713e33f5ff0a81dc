// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/parley/internal/dictation"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultEndpoint is the Deepgram streaming listen endpoint.
	DefaultEndpoint = "wss://api.deepgram.com/v1/listen"

	DefaultModel           = "nova-2"
	DefaultSampleRate      = 16000
	DefaultNoSpeechTimeout = 8 * time.Second

	// DefaultDrainTimeout bounds how long a graceful stop waits for the
	// provider to flush final results.
	DefaultDrainTimeout = 3 * time.Second

	// CodeNetwork is the error code for transport failures.
	CodeNetwork = "network"

	closeStreamMessage = `{"type":"CloseStream"}`
)

// Config configures a Recognizer.
type Config struct {
	APIKey          string
	Endpoint        string
	Model           string
	SampleRate      int
	NoSpeechTimeout time.Duration
	DrainTimeout    time.Duration
}

// =============================================================================
// RECOGNIZER
// =============================================================================

// Recognizer streams microphone audio to a Deepgram-compatible websocket
// and reports transcripts as dictation events.
type Recognizer struct {
	cfg    Config
	mic    Microphone
	dialer *websocket.Dialer
	logger *slog.Logger
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(r *Recognizer) { r.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) { r.logger = l }
}

// NewRecognizer creates a Recognizer capturing from mic.
func NewRecognizer(cfg Config, mic Microphone, opts ...Option) *Recognizer {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.NoSpeechTimeout <= 0 {
		cfg.NoSpeechTimeout = DefaultNoSpeechTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	r := &Recognizer{
		cfg:    cfg,
		mic:    mic,
		dialer: websocket.DefaultDialer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Supported reports whether an API key and a microphone are configured.
func (r *Recognizer) Supported() bool {
	return strings.TrimSpace(r.cfg.APIKey) != "" && r.mic != nil
}

// Permission probes the microphone.
func (r *Recognizer) Permission(ctx context.Context) dictation.Permission {
	if r.mic == nil {
		return dictation.PermissionUnknown
	}
	return r.mic.Probe(ctx)
}

// Start dials the provider, opens the microphone and begins streaming.
// The session ends when Stop or Abort is called, when ctx is cancelled, or
// when no speech is heard within the no-speech timeout.
func (r *Recognizer) Start(ctx context.Context, opts dictation.Options) (dictation.Session, error) {
	if !r.Supported() {
		return nil, dictation.ErrUnsupported
	}

	listenURL, err := buildListenURL(r.cfg, opts.Lang)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, resp, err := r.dialer.DialContext(ctx, listenURL, headers)
	if err != nil {
		return nil, r.dialError(resp, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	audio, err := r.mic.Open(ctx, r.cfg.SampleRate)
	if err != nil {
		conn.Close()
		r.logger.Warn("DICTATION_CAPTURE_FAILED", "error", err)
		return nil, &dictation.Error{Kind: dictation.KindNoMicrophone, Message: dictation.MsgNoMicrophone}
	}

	s := newStreamSession(conn, audio, opts.Continuous, r.cfg.DrainTimeout, r.logger)
	s.start(ctx, r.cfg.NoSpeechTimeout)
	return s, nil
}

func (r *Recognizer) dialError(resp *http.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
		if resp.Body != nil {
			resp.Body.Close()
		}
	}
	r.logger.Warn("DICTATION_DIAL_FAILED", "status", status, "error", err)

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &dictation.Error{Kind: dictation.KindPermissionDenied, Message: dictation.MsgPermissionDenied}
	}
	return &dictation.Error{Kind: dictation.KindOther, Message: CodeNetwork}
}

// buildListenURL adds the streaming query parameters to the endpoint.
func buildListenURL(cfg Config, lang string) (string, error) {
	base := strings.TrimSpace(cfg.Endpoint)
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid dictation endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid dictation endpoint scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("model", cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", "true")
	q.Set("smart_format", "true")
	if lang != "" {
		q.Set("language", lang)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// =============================================================================
// PROVIDER MESSAGES
// =============================================================================

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r listenResponse) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
}

// =============================================================================
// STREAM SESSION
// =============================================================================

// endReason is why a session ended. The first reason recorded wins.
type endReason int

const (
	endNone endReason = iota
	endAborted
	endNoSpeech
	endNetwork
)

type streamSession struct {
	conn       *websocket.Conn
	audio      AudioStream
	continuous bool
	drain      time.Duration
	logger     *slog.Logger

	events chan dictation.Event
	done   chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	reason   endReason
	stopping bool
	noSpeech *time.Timer

	stopOnce sync.Once
}

func newStreamSession(conn *websocket.Conn, audio AudioStream, continuous bool, drain time.Duration, logger *slog.Logger) *streamSession {
	return &streamSession{
		conn:       conn,
		audio:      audio,
		continuous: continuous,
		drain:      drain,
		logger:     logger,
		events:     make(chan dictation.Event, 64),
		done:       make(chan struct{}),
	}
}

func (s *streamSession) start(ctx context.Context, noSpeech time.Duration) {
	s.events <- dictation.Started()

	s.mu.Lock()
	s.noSpeech = time.AfterFunc(noSpeech, func() { s.fail(endNoSpeech) })
	s.mu.Unlock()

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()

	go func() {
		s.wg.Wait()
		s.finish()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Abort()
		case <-s.done:
		}
	}()
}

// Events yields start, results, an optional error and a final end event.
func (s *streamSession) Events() <-chan dictation.Event {
	return s.events
}

// Stop ends capture and asks the provider to flush. Final results still
// arrive before the end event.
func (s *streamSession) Stop() error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	s.disarm()

	s.stopOnce.Do(func() {
		_ = s.audio.Stop()
	})
	return nil
}

// Abort tears the session down immediately.
func (s *streamSession) Abort() error {
	s.fail(endAborted)
	return nil
}

// fail records reason and tears down the transport.
func (s *streamSession) fail(reason endReason) {
	s.mu.Lock()
	if s.reason == endNone {
		s.reason = reason
	}
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		_ = s.audio.Stop()
	})
	_ = s.conn.Close()
}

func (s *streamSession) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio.Chunks() {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.readFailed(fmt.Errorf("send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(closeStreamMessage)); err != nil {
		s.readFailed(fmt.Errorf("close stream: %w", err))
		return
	}
	time.AfterFunc(s.drain, func() { _ = s.conn.Close() })
}

func (s *streamSession) readLoop() {
	defer s.wg.Done()
	defer s.stopOnce.Do(func() { _ = s.audio.Stop() })

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.readFailed(err)
			return
		}

		var msg listenResponse
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if strings.EqualFold(msg.Type, "Error") {
			s.logger.Warn("DICTATION_PROVIDER_ERROR", "message", msg.Message)
			s.fail(endNetwork)
			return
		}

		text := msg.transcript()
		if text == "" {
			continue
		}
		s.disarm()

		final := msg.IsFinal || msg.SpeechFinal
		s.emit(dictation.Event{
			Type:    dictation.EventResult,
			Results: []dictation.Result{{Transcript: text, Final: final}},
		})

		if final && !s.continuous {
			_ = s.Stop()
		}
	}
}

// readFailed classifies a transport error. Errors after Stop, Abort or a
// normal close end the session quietly.
func (s *streamSession) readFailed(err error) {
	s.mu.Lock()
	quiet := s.stopping || s.reason != endNone
	s.mu.Unlock()

	if quiet || websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	s.logger.Warn("DICTATION_STREAM_FAILED", "error", err)
	s.fail(endNetwork)
}

// disarm stops the no-speech timer.
func (s *streamSession) disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noSpeech != nil {
		s.noSpeech.Stop()
		s.noSpeech = nil
	}
}

func (s *streamSession) emit(ev dictation.Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// finish runs once both loops have exited.
func (s *streamSession) finish() {
	s.disarm()
	_ = s.conn.Close()

	s.mu.Lock()
	reason := s.reason
	s.mu.Unlock()

	switch reason {
	case endAborted:
		s.events <- dictation.Failed(string(dictation.KindAborted))
	case endNoSpeech:
		s.events <- dictation.Failed(string(dictation.KindNoSpeech))
	case endNetwork:
		s.events <- dictation.Failed(CodeNetwork)
	}
	s.events <- dictation.Ended()

	close(s.done)
	close(s.events)
}

var _ dictation.Recognizer = (*Recognizer)(nil)
