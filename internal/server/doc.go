// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the chat backend over HTTP.
//
// # Endpoints
//
//   - POST /api/chat     - Forwards {messages} to OpenRouter, relays the JSON reply
//   - POST /api/generate - Simulated reply for {prompt} after a fixed delay
//   - GET  /health       - Health check
//   - GET  /stats        - Request counters
//
// Every response allows any origin, and OPTIONS preflights get 204.
// Failures on /api/chat return {"error":"Something went wrong"} plus a
// details object, which is left out when Config.Production is set.
//
// # Middleware
//
// Requests pass through recovery, CORS, logging, tracing, a per-IP token
// bucket rate limiter and a body size cap, in that order.
//
// # Usage
//
//	srv := server.New(server.DefaultConfig(), cloud.NewClient(key), logger)
//	go srv.ListenAndServe()
//	defer srv.Shutdown(ctx)
package server
