// ABOUTME: Unit-of-work session bound to one pinned SQLite connection
// ABOUTME: Buffers new notes until Flush and discards unflushed work on Close

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionClosed is returned when a closed session is used.
var ErrSessionClosed = errors.New("session closed")

// Note is a piece of text recorded within a conversation.
type Note struct {
	ID        string
	Text      string
	CreatedAt time.Time
	Pending   bool // not yet flushed
}

// Session is the unit of work shared by every request of one conversation.
// New notes stay pending until Flush writes them in a single transaction.
// Session is safe for concurrent use by requests of the same conversation.
type Session struct {
	mu       sync.Mutex
	conn     *sql.Conn
	pending  []*Note
	closed   bool
	openedAt time.Time
	logger   *slog.Logger
}

func newSession(conn *sql.Conn, logger *slog.Logger) *Session {
	return &Session{
		conn:     conn,
		openedAt: time.Now(),
		logger:   logger,
	}
}

// OpenedAt returns when the session was opened.
func (s *Session) OpenedAt() time.Time {
	return s.openedAt
}

// AddNote records a pending note and returns it.
func (s *Session) AddNote(text string) (*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	note := &Note{
		ID:        uuid.New().String(),
		Text:      text,
		CreatedAt: time.Now().UTC(),
		Pending:   true,
	}
	s.pending = append(s.pending, note)
	return note, nil
}

// PendingCount returns the number of notes waiting for Flush.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ListNotes returns all flushed notes in the order they were written, followed
// by this session's pending ones in the order they were added.
func (s *Session) ListNotes(ctx context.Context) ([]*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, text, created_at
		FROM notes
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		var n Note
		var createdAt string
		if err := rows.Scan(&n.ID, &n.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		n.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}

	for _, p := range s.pending {
		n := *p
		notes = append(notes, &n)
	}
	return notes, nil
}

// Flush writes pending notes in one transaction. On failure nothing is
// written and the notes stay pending.
func (s *Session) Flush(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}
	if len(s.pending) == 0 {
		return 0, nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, n := range s.pending {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notes (id, text, created_at) VALUES (?, ?, ?)`,
			n.ID, n.Text, n.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting note %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	flushed := len(s.pending)
	s.pending = nil
	s.logger.Debug("session flushed", "notes", flushed)
	return flushed, nil
}

// Close discards unflushed notes and releases the connection. Closing twice
// returns ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true

	if len(s.pending) > 0 {
		s.logger.Warn("discarding unflushed notes", "count", len(s.pending))
		s.pending = nil
	}
	return s.conn.Close()
}
