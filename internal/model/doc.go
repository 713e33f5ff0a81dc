// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// # Key Types
//
//   - Message: Immutable entry with ID, role, content, and creation time
//   - SessionLog: Append-only ordered log seeded with a greeting
//   - ChatMessage: Role/content pair sent to a completion service
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
//	log := model.NewSessionLog("Hello! How can I help?")
//	log.Append(model.RoleUser, "What is Go?")
//	history := log.History()
package model
