// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// DefaultMaxSessions caps the archive. Older sessions are pruned on save.
const DefaultMaxSessions = 500

// =============================================================================
// STORED SESSION TYPES
// =============================================================================

// StoredSession is one archived chat session.
type StoredSession struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Language  string          `json:"language"`
	Messages  []StoredMessage `json:"messages"`
}

// StoredMessage is one archived message.
type StoredMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionMeta is the listing view of a session.
type SessionMeta struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	Language     string    `json:"language"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// FromLog snapshots a live session log for archiving.
func FromLog(log *model.SessionLog, language string) *StoredSession {
	msgs := log.Messages()
	stored := &StoredSession{
		ID:        log.ID(),
		StartedAt: log.StartedAt(),
		EndedAt:   time.Now(),
		Language:  language,
		Messages:  make([]StoredMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		stored.Messages = append(stored.Messages, StoredMessage{
			ID:        m.ID,
			Role:      m.Role.String(),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return stored
}

// Preview returns the first user message, flattened and truncated.
func (s *StoredSession) Preview() string {
	for _, m := range s.Messages {
		if m.Role == string(model.RoleUser) && m.Content != "" {
			return util.Preview(m.Content, 80)
		}
	}
	return ""
}

// =============================================================================
// STORE
// =============================================================================

// Store is the local SQLite history archive.
type Store struct {
	db   *sql.DB
	path string

	// MaxSessions limits stored sessions (0 = unlimited).
	MaxSessions int
}

// Open opens or creates the archive at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close()
		return nil, fmt.Errorf("failed to secure history file: %w", err)
	}

	return &Store{db: db, path: path, MaxSessions: DefaultMaxSessions}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save writes sess, replacing any session with the same ID, and returns
// its ID.
func (s *Store) Save(ctx context.Context, sess *StoredSession) (string, error) {
	if sess == nil {
		return "", errors.New("nil session")
	}
	if sess.ID == "" {
		return "", errors.New("session has no ID")
	}
	if sess.EndedAt.IsZero() {
		sess.EndedAt = time.Now()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = sess.EndedAt
	}
	if sess.Language == "" {
		sess.Language = "en"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at, ended_at, language) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			ended_at   = excluded.ended_at,
			language   = excluded.language`,
		sess.ID, sess.StartedAt.UnixNano(), sess.EndedAt.UnixNano(), sess.Language,
	); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sess.ID); err != nil {
		return "", fmt.Errorf("clear messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, session_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare messages: %w", err)
	}
	defer stmt.Close()

	for i, m := range sess.Messages {
		if _, err := stmt.ExecContext(ctx, m.ID, sess.ID, i, m.Role, m.Content, m.CreatedAt.UnixNano()); err != nil {
			return "", fmt.Errorf("save message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save: %w", err)
	}

	if s.MaxSessions > 0 {
		if err := s.prune(ctx); err != nil {
			return sess.ID, err
		}
	}
	return sess.ID, nil
}

// Archive saves a live session log. It satisfies session.Archiver.
func (s *Store) Archive(ctx context.Context, log *model.SessionLog, language string) error {
	_, err := s.Save(ctx, FromLog(log, language))
	return err
}

// prune deletes the oldest sessions beyond MaxSessions.
func (s *Store) prune(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions ORDER BY ended_at DESC LIMIT -1 OFFSET ?
		)`, s.MaxSessions)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Get loads a session by ID or by a unique ID prefix.
func (s *Store) Get(ctx context.Context, id string) (*StoredSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSessionNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, language FROM sessions WHERE id = ? OR id LIKE ? ESCAPE '\' LIMIT 2`,
		id, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var matches []StoredSession
	for rows.Next() {
		var sess StoredSession
		var started, ended int64
		if err := rows.Scan(&sess.ID, &started, &ended, &sess.Language); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.StartedAt = fromNanos(started)
		sess.EndedAt = fromNanos(ended)
		matches = append(matches, sess)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess *StoredSession
	for i := range matches {
		if matches[i].ID == id {
			sess = &matches[i]
		}
	}
	switch {
	case sess != nil:
	case len(matches) == 1:
		sess = &matches[0]
	case len(matches) > 1:
		return nil, ErrAmbiguousID
	default:
		return nil, ErrSessionNotFound
	}

	msgs, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY seq`, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer msgs.Close()

	for msgs.Next() {
		var m StoredMessage
		var created int64
		if err := msgs.Scan(&m.ID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = fromNanos(created)
		sess.Messages = append(sess.Messages, m)
	}
	if err := msgs.Err(); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return sess, nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns up to limit sessions, most recent first. A limit of zero or
// less returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]SessionMeta, error) {
	return s.query(ctx, "", limit)
}

// Search lists sessions with any message containing query,
// case-insensitively.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SessionMeta, error) {
	return s.query(ctx, query, limit)
}

func (s *Store) query(ctx context.Context, search string, limit int) ([]SessionMeta, error) {
	if limit <= 0 {
		limit = -1
	}

	q := `
		SELECT s.id, s.started_at, s.ended_at, s.language,
			(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id),
			COALESCE((SELECT m.content FROM messages m
				WHERE m.session_id = s.id AND m.role = 'user'
				ORDER BY m.seq LIMIT 1), '')
		FROM sessions s`
	args := []any{}
	if search != "" {
		q += ` WHERE EXISTS (SELECT 1 FROM messages m
			WHERE m.session_id = s.id AND LOWER(m.content) LIKE ? ESCAPE '\')`
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
	}
	q += ` ORDER BY s.ended_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	metas := []SessionMeta{}
	for rows.Next() {
		var m SessionMeta
		var started, ended int64
		var preview string
		if err := rows.Scan(&m.ID, &started, &ended, &m.Language, &m.MessageCount, &preview); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		m.StartedAt = fromNanos(started)
		m.EndedAt = fromNanos(ended)
		m.Preview = util.Preview(preview, 80)
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return metas, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a session and its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSessionNotFound is returned when no session matches.
	// Use errors.Is(err, ErrSessionNotFound) to check for this error.
	ErrSessionNotFound = &StorageError{Message: "session not found"}

	// ErrAmbiguousID is returned when an ID prefix matches several sessions.
	ErrAmbiguousID = &StorageError{Message: "session ID prefix is ambiguous"}
)

// StorageError is a history lookup error comparable with errors.Is.
type StorageError struct {
	Message string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return e.Message
}

// Is matches StorageErrors by message.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList renders sessions as a fixed-width table.
func FormatSessionList(sessions []SessionMeta) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("ID", 10) + " " + util.PadRight("Ended", 17) + " " +
		util.PadRight("Lang", 5) + " " + util.PadRight("Msgs", 5) + " Preview\n")
	sb.WriteString(strings.Repeat("-", 78) + "\n")

	for _, s := range sessions {
		id := s.ID
		if len(id) > 8 {
			id = id[:8]
		}
		sb.WriteString(util.PadRight(id, 10) + " " +
			util.PadRight(s.EndedAt.Local().Format("2006-01-02 15:04"), 17) + " " +
			util.PadRight(s.Language, 5) + " " +
			util.PadRight(strconv.Itoa(s.MessageCount), 5) + " " +
			util.Truncate(s.Preview, 36) + "\n")
	}
	return sb.String()
}
