// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/model"
)

var history = []model.ChatMessage{
	{Role: "assistant", Content: "Hello! I'm your AI assistant. How can I help you today?"},
	{Role: "user", Content: "What is Go?"},
}

// =============================================================================
// PROXY CLIENT TESTS
// =============================================================================

func TestProxyClient_Complete(t *testing.T) {
	var got struct {
		Messages []model.ChatMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"A language."}}]}`)
	}))
	defer srv.Close()

	c := NewProxyClient(srv.URL+"/", nil)
	reply, err := c.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "A language.", reply)
	assert.Equal(t, history, got.Messages)
}

func TestProxyClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "bad request carries error field",
			status: http.StatusBadRequest,
			body:   `{"error":"'messages' field is required and must be an array."}`,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusBadRequest, se.StatusCode)
				assert.Equal(t, "'messages' field is required and must be an array.", se.Message)
			},
		},
		{
			name:   "server error without json",
			status: http.StatusInternalServerError,
			body:   `oops`,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Empty(t, se.Message)
				assert.Contains(t, se.Error(), "500")
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedReply)
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedReply)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := NewProxyClient(srv.URL, nil).Complete(context.Background(), history)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

// =============================================================================
// GENERATE CLIENT TESTS
// =============================================================================

func TestGenerateClient_SendsLatestPrompt(t *testing.T) {
	var got struct {
		Prompt string `json:"prompt"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"text": StubReply(got.Prompt)})
	}))
	defer srv.Close()

	reply, err := NewGenerateClient(srv.URL, nil).Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "What is Go?", got.Prompt)
	assert.Equal(t, "Simulated AI reply for: What is Go?", reply)
}

func TestGenerateClient_MissingText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	_, err := NewGenerateClient(srv.URL, nil).Complete(context.Background(), history)
	require.ErrorIs(t, err, ErrMalformedReply)
}

func TestGenerateClient_NoPrompt(t *testing.T) {
	_, err := NewGenerateClient("http://127.0.0.1:0", nil).Complete(context.Background(), history[:1])
	require.ErrorIs(t, err, ErrNoPrompt)
}

// =============================================================================
// STUB TESTS
// =============================================================================

func TestStub_EchoesPrompt(t *testing.T) {
	reply, err := NewStub(0).Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "Simulated AI reply for: What is Go?", reply)
}

func TestStub_DefaultDelay(t *testing.T) {
	assert.Equal(t, DefaultStubDelay, NewStub(-1).Delay)
	assert.Equal(t, 1400*time.Millisecond, DefaultStubDelay)
}

func TestStub_CancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewStub(time.Hour).Complete(ctx, history)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

// =============================================================================
// SELECTION TESTS
// =============================================================================

func TestNew_SelectsByMode(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     Mode
		wantType any
	}{
		{"auto without key is stub", Settings{Mode: ModeAuto}, ModeStub, &Stub{}},
		{"auto with key is direct", Settings{Mode: ModeAuto, APIKey: "k"}, ModeDirect, &cloud.Client{}},
		{"empty mode is auto", Settings{}, ModeStub, &Stub{}},
		{"proxy", Settings{Mode: ModeProxy, Endpoint: "http://localhost:8787"}, ModeProxy, &ProxyClient{}},
		{"generate", Settings{Mode: ModeGenerate, Endpoint: "http://localhost:8787"}, ModeGenerate, &GenerateClient{}},
		{"stub", Settings{Mode: ModeStub, APIKey: "k"}, ModeStub, &Stub{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, mode, err := New(tc.settings)
			require.NoError(t, err)
			assert.Equal(t, tc.want, mode)
			assert.IsType(t, tc.wantType, svc)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, _, err := New(Settings{Mode: ModeDirect})
	assert.ErrorIs(t, err, cloud.ErrNotConfigured)

	_, _, err = New(Settings{Mode: ModeProxy})
	assert.Error(t, err)

	_, _, err = New(Settings{Mode: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestMode_Valid(t *testing.T) {
	for _, m := range Modes {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, Mode("grpc").Valid())
}
