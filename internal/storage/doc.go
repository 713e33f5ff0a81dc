// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the local chat history archive for parley.
//
// Finished sessions are saved client-side to a SQLite database
// (modernc.org/sqlite, no cgo). Nothing is stored by the HTTP server.
//
// # Key Types
//
//   - Store: SQLite-backed archive, also a session.Archiver
//   - StoredSession: Serializable session with its messages
//   - SessionMeta: Lightweight metadata for listing
//
// # Usage
//
//	store, err := storage.Open(cfg.HistoryPath())
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	metas, err := store.List(ctx, 20)
//	sess, err := store.Get(ctx, metas[0].ID)
//
// # Storage Location
//
// Sessions are stored in ~/.parley/history.db.
package storage
