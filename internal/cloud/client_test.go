// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
)

const okBody = `{"id":"gen-1","model":"openai/gpt-3.5-turbo","choices":[{"message":{"role":"assistant","content":"Hi there"},"finish_reason":"stop"}]}`

// =============================================================================
// FORWARD TESTS
// =============================================================================

func TestForward_SendsModelHeadersAndMessagesVerbatim(t *testing.T) {
	var got struct {
		Model    string          `json:"model"`
		Messages json.RawMessage `json:"messages"`
	}
	var headers http.Header
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c := NewClient("sk-or-test", WithBaseURL(srv.URL+"/"))
	msgs := json.RawMessage(`[{"role":"user","content":"Hello","extra":1}]`)

	body, err := c.Forward(context.Background(), msgs)
	require.NoError(t, err)

	assert.Equal(t, okBody, string(body))
	assert.Equal(t, "/chat/completions", path)
	assert.Equal(t, DefaultModel, got.Model)
	assert.JSONEq(t, string(msgs), string(got.Messages))
	assert.Equal(t, "Bearer sk-or-test", headers.Get("Authorization"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, DefaultReferer, headers.Get("HTTP-Referer"))
}

func TestForward_NotConfigured(t *testing.T) {
	c := NewClient("   ")
	require.False(t, c.IsConfigured())

	_, err := c.Forward(context.Background(), json.RawMessage(`[]`))
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestForward_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":401,"message":"No auth credentials found"}}`, ErrAuthFailed, "No auth credentials found"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimited, "slow down"},
		{"server error", http.StatusBadGateway, `upstream exploded`, nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c := NewClient("key", WithBaseURL(srv.URL))
			body, err := c.Forward(context.Background(), json.RawMessage(`[]`))

			var upErr *UpstreamError
			require.True(t, errors.As(err, &upErr))
			assert.Equal(t, tc.status, upErr.StatusCode)
			assert.Equal(t, tc.body, string(upErr.Body))
			assert.Equal(t, tc.body, string(body))
			assert.Equal(t, tc.message, upErr.Message())
			if tc.sentinel != nil {
				assert.ErrorIs(t, err, tc.sentinel)
			}
		})
	}
}

func TestForward_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", MaxResponseSize+10))
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL))
	_, err := c.Forward(context.Background(), json.RawMessage(`[]`))
	require.ErrorIs(t, err, ErrResponseTooLarge)
}

// =============================================================================
// COMPLETE TESTS
// =============================================================================

func TestComplete_ExtractsFirstChoice(t *testing.T) {
	var sent []model.ChatMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []model.ChatMessage `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		sent = req.Messages
		io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL), WithModel("anthropic/claude-3-haiku"))
	assert.Equal(t, "anthropic/claude-3-haiku", c.Model())

	history := []model.ChatMessage{
		{Role: "assistant", Content: "Hello!"},
		{Role: "user", Content: "Hi"},
	}
	reply, err := c.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)
	assert.Equal(t, history, sent)
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"x","choices":[]}`)
	}))
	defer srv.Close()

	c := NewClient("key", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), []model.ChatMessage{{Role: "user", Content: "Hi"}})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestComplete_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("key", WithBaseURL(srv.URL))
	_, err := c.Complete(ctx, []model.ChatMessage{{Role: "user", Content: "Hi"}})
	require.ErrorIs(t, err, context.Canceled)
}
