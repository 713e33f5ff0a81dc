// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/completion"
)

// Client-facing error messages.
const (
	msgMessagesRequired = "'messages' field is required and must be an array."
	msgSomethingWrong   = "Something went wrong"
	msgGenerateFailed   = "Failed to generate response"
	msgBodyTooLarge     = "Request body too large"
)

var (
	errForwarderMissing = errors.New("chat provider not configured")
	errNullBody         = errors.New("request body is null")
)

// ============================================================================
// RESPONSE TYPES
// ============================================================================

type errorResponse struct {
	Error   string        `json:"error"`
	Details *errorDetails `json:"details,omitempty"`
}

// errorDetails is included in 500 responses outside production.
type errorDetails struct {
	Message  string `json:"message"`
	Stack    string `json:"stack,omitempty"`
	Response any    `json:"response,omitempty"`
}

// GenerateRequest is the POST /api/generate body. Prompt may be any JSON
// value; it is rendered as text the way a template literal would.
type GenerateRequest struct {
	Prompt any `json:"prompt"`
}

// GenerateResponse is the POST /api/generate reply.
type GenerateResponse struct {
	Text string `json:"text"`
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status string `json:"status"`
}

// ============================================================================
// CHAT PROXY
// ============================================================================

// handleChat forwards {messages} to the provider and relays its JSON body.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.stats.Chat.Add(1)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.readFailed(w, err)
		return
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.chatFailed(w, r, err)
		return
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		s.badRequest(w)
		return
	}
	if _, ok := obj["messages"].([]any); !ok {
		s.badRequest(w)
		return
	}

	var req struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.chatFailed(w, r, err)
		return
	}

	if s.forwarder == nil {
		s.chatFailed(w, r, errForwarderMissing)
		return
	}

	reply, err := s.forwarder.Forward(r.Context(), req.Messages)
	if err != nil {
		s.chatFailed(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(reply)
}

func (s *Server) badRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgMessagesRequired})
}

// chatFailed writes the generic 500, with diagnostics unless in production.
func (s *Server) chatFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.stats.Failures.Add(1)
	s.logger.Error("CHAT_PROXY_FAILED", "path", r.URL.Path, "error", err)

	resp := errorResponse{Error: msgSomethingWrong}
	if !s.cfg.Production {
		resp.Details = describeError(err)
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

func (s *Server) readFailed(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: msgBodyTooLarge})
		return
	}
	s.stats.Failures.Add(1)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgSomethingWrong})
}

// describeError builds the diagnostic details for err. Stack is the
// wrapped error chain, outermost first. Response is the upstream body,
// embedded as JSON when it parses.
func describeError(err error) *errorDetails {
	d := &errorDetails{Message: err.Error()}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, e.Error())
	}
	if len(chain) > 1 {
		d.Stack = strings.Join(chain, "\n")
	}

	var upErr *cloud.UpstreamError
	if errors.As(err, &upErr) && len(upErr.Body) > 0 {
		if json.Valid(upErr.Body) {
			d.Response = json.RawMessage(upErr.Body)
		} else {
			d.Response = string(upErr.Body)
		}
	}
	return d
}

// ============================================================================
// STUB GENERATION
// ============================================================================

// handleGenerate echoes the prompt after the configured delay.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.stats.Generate.Add(1)

	var body any
	err := json.NewDecoder(r.Body).Decode(&body)
	if err == nil && body == nil {
		err = errNullBody
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: msgBodyTooLarge})
			return
		}
		s.stats.Failures.Add(1)
		s.logger.Warn("GENERATE_BAD_REQUEST", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgGenerateFailed})
		return
	}

	var req GenerateRequest
	if obj, ok := body.(map[string]any); ok {
		req.Prompt, ok = obj["prompt"]
		if !ok {
			req.Prompt = undefined{}
		}
	} else {
		req.Prompt = undefined{}
	}

	if s.cfg.StubDelay > 0 {
		timer := time.NewTimer(s.cfg.StubDelay)
		defer timer.Stop()
		select {
		case <-r.Context().Done():
			return
		case <-timer.C:
		}
	}

	writeJSON(w, http.StatusOK, GenerateResponse{Text: completion.StubReply(promptText(req.Prompt))})
}

// ============================================================================
// HEALTH & STATS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// undefined marks a prompt field that was absent from the body.
type undefined struct{}

// promptText renders a decoded JSON value as template-literal text:
// absent is "undefined", null is "null", arrays join their elements with
// commas and objects become "[object Object]".
func promptText(v any) string {
	switch v := v.(type) {
	case undefined:
		return "undefined"
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return formatNumber(v)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			if e != nil {
				parts[i] = promptText(e)
			}
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}

func formatNumber(f float64) string {
	if math.Abs(f) >= 1e21 || (f != 0 && math.Abs(f) < 1e-6) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		return strings.NewReplacer("e-0", "e-", "e+0", "e+").Replace(s)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
