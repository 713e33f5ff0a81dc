// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope for --json output.
type JSONResponse struct {
	Success   bool      `json:"success"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// AskData is the ask command payload.
type AskData struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Mode       string `json:"mode"`
	Language   string `json:"language"`
	DurationMs int64  `json:"duration_ms"`
}

// NewJSONSuccess wraps data in a successful envelope.
func NewJSONSuccess(cmd string, data any) JSONResponse {
	return JSONResponse{Success: true, Command: cmd, Timestamp: time.Now().UTC(), Data: data}
}

// NewJSONError wraps err in a failed envelope.
func NewJSONError(cmd string, err error) JSONResponse {
	return JSONResponse{Command: cmd, Timestamp: time.Now().UTC(), Error: err.Error()}
}

// Write prints the envelope as indented JSON.
func (r JSONResponse) Write(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
