// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/parley/internal/model"
)

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 90 * time.Second

// maxReplySize caps how much of a reply body is read.
const maxReplySize = 4 * 1024 * 1024

// =============================================================================
// PROXY CLIENT
// =============================================================================

// ProxyClient calls a parley server's POST /api/chat route, which forwards
// the conversation to OpenRouter and returns the provider's JSON unchanged.
type ProxyClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewProxyClient creates a client for the server at endpoint
// (e.g. "http://localhost:8787").
func NewProxyClient(endpoint string, httpClient *http.Client) *ProxyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &ProxyClient{endpoint: strings.TrimSuffix(endpoint, "/"), httpClient: httpClient}
}

// Complete sends the full history and returns choices[0].message.content.
func (c *ProxyClient) Complete(ctx context.Context, history []model.ChatMessage) (string, error) {
	var resp struct {
		Choices []struct {
			Message model.ChatMessage `json:"message"`
		} `json:"choices"`
	}
	payload := struct {
		Messages []model.ChatMessage `json:"messages"`
	}{Messages: history}

	if err := postJSON(ctx, c.httpClient, c.endpoint+"/api/chat", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedReply)
	}
	return resp.Choices[0].Message.Content, nil
}

// =============================================================================
// GENERATE CLIENT
// =============================================================================

// GenerateClient calls the stub POST /api/generate route with only the
// latest user prompt.
type GenerateClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewGenerateClient creates a client for the server at endpoint.
func NewGenerateClient(endpoint string, httpClient *http.Client) *GenerateClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &GenerateClient{endpoint: strings.TrimSuffix(endpoint, "/"), httpClient: httpClient}
}

// Complete posts {prompt} and returns the {text} field.
func (c *GenerateClient) Complete(ctx context.Context, history []model.ChatMessage) (string, error) {
	prompt, err := lastUserPrompt(history)
	if err != nil {
		return "", err
	}

	var resp struct {
		Text *string `json:"text"`
	}
	payload := struct {
		Prompt string `json:"prompt"`
	}{Prompt: prompt}

	if err := postJSON(ctx, c.httpClient, c.endpoint+"/api/generate", payload, &resp); err != nil {
		return "", err
	}
	if resp.Text == nil {
		return "", fmt.Errorf("%w: missing text", ErrMalformedReply)
	}
	return *resp.Text, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// postJSON posts payload and decodes a 2xx body into out. Non-2xx answers
// become *StatusError carrying the body's "error" field when present.
func postJSON(ctx context.Context, hc *http.Client, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &errBody)
		return &StatusError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return nil
}
