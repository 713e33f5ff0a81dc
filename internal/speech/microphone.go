// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/jeranaias/parley/internal/dictation"
)

// chunkSizeBytes is 20ms of 16kHz mono s16le.
const chunkSizeBytes = 640

// =============================================================================
// MICROPHONE
// =============================================================================

// Microphone opens PCM capture streams.
type Microphone interface {
	// Open starts capturing mono signed 16-bit little endian PCM.
	Open(ctx context.Context, sampleRate int) (AudioStream, error)

	// Probe reports whether a capture source is reachable.
	Probe(ctx context.Context) dictation.Permission
}

// AudioStream is one running capture.
type AudioStream interface {
	// Chunks yields PCM until Stop. It is closed exactly once.
	Chunks() <-chan []byte

	// Stop ends capture. It is idempotent.
	Stop() error
}

// PulseMicrophone captures from the default PulseAudio source.
type PulseMicrophone struct {
	AppName string
}

// NewPulseMicrophone returns a PulseMicrophone named parley.
func NewPulseMicrophone() *PulseMicrophone {
	return &PulseMicrophone{AppName: "parley"}
}

func (m *PulseMicrophone) client() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(m.AppName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// Probe connects to the Pulse server and looks up the default source.
func (m *PulseMicrophone) Probe(_ context.Context) dictation.Permission {
	client, err := m.client()
	if err != nil {
		return dictation.PermissionUnknown
	}
	defer client.Close()

	if _, err := client.DefaultSource(); err != nil {
		return dictation.PermissionDenied
	}
	return dictation.PermissionGranted
}

// Open starts a record stream on the default source. Cancelling ctx stops
// the capture.
func (m *PulseMicrophone) Open(ctx context.Context, sampleRate int) (AudioStream, error) {
	client, err := m.client()
	if err != nil {
		return nil, err
	}
	source, err := client.DefaultSource()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("read default source: %w", err)
	}

	c := &pulseCapture{
		client: client,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("parley dictation"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.stopCh:
		}
	}()
	return c, nil
}

// pulseCapture forwards Pulse record callbacks to a channel.
type pulseCapture struct {
	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

func (c *pulseCapture) Chunks() <-chan []byte {
	return c.chunks
}

func (c *pulseCapture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	c.client.Close()

	c.inflight.Wait()
	close(c.chunks)
	return nil
}

func (c *pulseCapture) onPCM(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	chunk := append([]byte(nil), buf...)
	select {
	case c.chunks <- chunk:
	case <-c.stopCh:
		return 0, io.EOF
	}
	return len(buf), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
