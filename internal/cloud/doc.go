// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the OpenRouter chat completions client.
//
// The client is used two ways: the HTTP proxy route forwards a browser's
// messages array untouched with Forward, and the TUI talks to OpenRouter
// directly through Complete, which satisfies completion.Service.
//
// # Key Types
//
//   - Client: OpenRouter client with bearer auth and a capped response size
//   - UpstreamError: Non-2xx answer carrying the raw response body
//   - ChatResponse: The subset of a chat completion that parley reads
//
// # Usage
//
//	client := cloud.NewClient(os.Getenv("OPENROUTER_API_KEY"))
//	body, err := client.Forward(ctx, json.RawMessage(`[{"role":"user","content":"Hi"}]`))
//
// API keys are never logged.
package cloud
