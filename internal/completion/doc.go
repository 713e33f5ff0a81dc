// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion provides the clients that turn a conversation history
// into an assistant reply.
//
// # Key Types
//
//   - Service: Complete(ctx, history) (string, error)
//   - ProxyClient: posts the history to the local /api/chat proxy
//   - GenerateClient: posts the latest prompt to /api/generate
//   - Stub: canned reply after a fixed delay, for offline use
//
// # Usage
//
//	svc, mode, err := completion.New(completion.Settings{
//	    Mode:     completion.ModeProxy,
//	    Endpoint: "http://localhost:3000/api/chat",
//	})
//	reply, err := svc.Complete(ctx, log.History())
package completion
