// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jeranaias/parley/internal/model"
)

// Configuration constants for the OpenRouter API.
const (
	// DefaultBaseURL is the base URL for the OpenRouter API.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is the chat model requested when none is configured.
	DefaultModel = "openai/gpt-3.5-turbo"

	// DefaultReferer is sent as HTTP-Referer for OpenRouter attribution.
	DefaultReferer = "http://localhost:3000"

	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum accepted response body size.
	MaxResponseSize = 10 * 1024 * 1024

	instrumentationName = "github.com/jeranaias/parley/internal/cloud"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("OpenRouter API key not configured")

	// ErrEmptyResponse is returned when a completion has no choices.
	ErrEmptyResponse = errors.New("OpenRouter returned no choices")

	// ErrAuthFailed matches an UpstreamError with status 401 or 403.
	ErrAuthFailed = errors.New("OpenRouter authentication failed")

	// ErrRateLimited matches an UpstreamError with status 429.
	ErrRateLimited = errors.New("OpenRouter rate limit exceeded")

	// ErrResponseTooLarge is returned when a body exceeds MaxResponseSize.
	ErrResponseTooLarge = fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
)

// =============================================================================
// ERRORS
// =============================================================================

// UpstreamError is a non-2xx answer from OpenRouter. Body is the raw
// response so callers can hand it back for diagnostics.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("OpenRouter error (status %d): %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("OpenRouter error (status %d)", e.StatusCode)
}

// Message returns the provider's error message, if the body carries one.
func (e *UpstreamError) Message() string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(e.Body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return ""
}

// Unwrap maps well-known statuses to sentinel errors.
func (e *UpstreamError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// apiErrorResponse is the error envelope OpenRouter uses.
type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// forwardRequest carries the messages exactly as the caller supplied them.
type forwardRequest struct {
	Model    string          `json:"model"`
	Messages json.RawMessage `json:"messages"`
}

// ChatResponse is the part of a chat completion parley reads.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      model.ChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
}

// Content returns the first choice's text, or "" if there is none.
func (r *ChatResponse) Content() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the OpenRouter chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	referer    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithModel sets the requested model.
func WithModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// WithReferer sets the HTTP-Referer header.
func WithReferer(r string) Option {
	return func(c *Client) { c.referer = r }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for apiKey. An empty key yields a client whose
// calls fail with ErrNotConfigured.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		referer:    DefaultReferer,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Model returns the requested model.
func (c *Client) Model() string {
	return c.model
}

// Forward posts {model, messages} with messages passed through verbatim and
// returns the raw response body. A non-2xx answer is an *UpstreamError.
func (c *Client) Forward(ctx context.Context, messages json.RawMessage) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	ctx, span := c.tracer.Start(ctx, "proxy.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("llm.model", c.model)))
	defer span.End()

	body, err := c.post(ctx, forwardRequest{Model: c.model, Messages: messages})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return body, err
	}
	return body, nil
}

// Complete implements completion.Service.
func (c *Client) Complete(ctx context.Context, history []model.ChatMessage) (string, error) {
	raw, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("failed to marshal messages: %w", err)
	}

	body, err := c.Forward(ctx, raw)
	if err != nil {
		return "", err
	}

	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Content(), nil
}

func (c *Client) post(ctx context.Context, payload forwardRequest) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	req.Header.Del("Authorization")
	if err != nil {
		c.logger.Warn("UPSTREAM_REQUEST_FAILED", "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("UPSTREAM_RESPONSE",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
}

// readResponse reads the body, refusing anything over MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}
