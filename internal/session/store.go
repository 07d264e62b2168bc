// Package session provides conversation memory for chat turns: entry
// storage, lossy compaction into digests, and per-session locking.
package session

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one message in a session transcript.
type Entry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Role       string    `json:"role"` // user, assistant, tool, system
	Content    string    `json:"content"`
	ToolName   string    `json:"tool_name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	TokenCount int       `json:"token_count"`
	Compacted  bool      `json:"compacted"`
}

// ToolCallRecord is a structured record of one tool invocation,
// persisted for the dashboard activity view.
type ToolCallRecord struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	ToolName    string     `json:"tool_name"`
	Arguments   string     `json:"arguments"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMs  int64      `json:"duration_ms,omitempty"`
}

// timeFormat is RFC 3339 with fixed-width nanoseconds. RFC3339Nano
// strips trailing zeros, which breaks lexical ordering of the TEXT
// timestamp column ("...00.1Z" sorts after "...00.12Z"); zero-padding
// keeps string comparison chronological for both ORDER BY and the
// compaction cutoff.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed session store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates a session store backed by a sqlite file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewWithDB creates a session store using an existing database connection.
func NewWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_name TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			token_count INTEGER DEFAULT 0,
			compacted BOOLEAN DEFAULT FALSE,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_entries_compacted ON entries(session_id, compacted);

		CREATE TABLE IF NOT EXISTS tool_calls (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			arguments TEXT NOT NULL,
			result TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			duration_ms INTEGER,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id, started_at);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ensureSession creates the session row if it does not exist.
func (s *Store) ensureSession(sessionID string, now time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)
	`, sessionID, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	_, err = s.db.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339), sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Append adds an entry to a session, creating the session as needed.
func (s *Store) Append(sessionID, role, content string) error {
	return s.append(sessionID, role, content, "")
}

// AppendToolResult adds a tool-role entry recording an observation the
// agent received from a tool.
func (s *Store) AppendToolResult(sessionID, toolName, content string) error {
	return s.append(sessionID, "tool", content, toolName)
}

func (s *Store) append(sessionID, role, content, toolName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if err := s.ensureSession(sessionID, now); err != nil {
		return err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO entries (id, session_id, role, content, tool_name, timestamp, token_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.String(), sessionID, role, content, toolName,
		now.Format(timeFormat), estimateTokens(content))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Context returns the non-compacted entries of a session in
// chronological order, up to maxEntries (0 means no limit).
func (s *Store) Context(sessionID string, maxEntries int) ([]Entry, error) {
	query := `
		SELECT id, session_id, role, content, tool_name, timestamp, token_count, compacted
		FROM entries
		WHERE session_id = ? AND compacted = FALSE
		ORDER BY timestamp ASC, id ASC
	`
	args := []any{sessionID}
	if maxEntries > 0 {
		query += ` LIMIT ?`
		args = append(args, maxEntries)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// AllEntries returns every entry including compacted ones, for the
// session archive view.
func (s *Store) AllEntries(sessionID string) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, tool_name, timestamp, token_count, compacted
		FROM entries WHERE session_id = ? ORDER BY timestamp ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// TokenCount returns the total estimated tokens of non-compacted entries.
func (s *Store) TokenCount(sessionID string) int {
	var count int
	_ = s.db.QueryRow(`
		SELECT COALESCE(SUM(token_count), 0)
		FROM entries
		WHERE session_id = ? AND compacted = FALSE
	`, sessionID).Scan(&count)
	return count
}

// EntriesForCompaction returns the entries eligible for compaction,
// keeping the most recent 'keep' entries untouched. System entries
// (digests) are never compacted.
func (s *Store) EntriesForCompaction(sessionID string, keep int) []Entry {
	var total int
	_ = s.db.QueryRow(`
		SELECT COUNT(*) FROM entries
		WHERE session_id = ? AND compacted = FALSE AND role != 'system'
	`, sessionID).Scan(&total)

	if total <= keep {
		return nil // Nothing to compact
	}

	rows, err := s.db.Query(`
		SELECT id, session_id, role, content, tool_name, timestamp, token_count, compacted
		FROM entries
		WHERE session_id = ? AND compacted = FALSE AND role != 'system'
		ORDER BY timestamp ASC, id ASC
		LIMIT ?
	`, sessionID, total-keep)
	if err != nil {
		return nil
	}
	defer rows.Close()

	entries, _ := collectEntries(rows)
	return entries
}

// MarkCompacted flags entries before the cutoff as compacted. They stay
// in the table for the archive but drop out of context.
func (s *Store) MarkCompacted(sessionID string, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE entries SET compacted = TRUE
		WHERE session_id = ? AND timestamp < ? AND role != 'system'
	`, sessionID, before.Format(timeFormat))
	return err
}

// AddDigest inserts a system-role digest entry summarizing compacted
// history.
func (s *Store) AddDigest(sessionID, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO entries (id, session_id, role, content, timestamp, token_count, compacted)
		VALUES (?, ?, 'system', ?, ?, ?, FALSE)
	`, id.String(), sessionID, digest, now.Format(timeFormat), estimateTokens(digest))
	return err
}

// RecordToolCall persists the start of a tool invocation and returns its id.
func (s *Store) RecordToolCall(sessionID, toolName, arguments string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if err := s.ensureSession(sessionID, now); err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO tool_calls (id, session_id, tool_name, arguments, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id.String(), sessionID, toolName, arguments, now.Format(timeFormat))
	if err != nil {
		return "", fmt.Errorf("record tool call: %w", err)
	}
	return id.String(), nil
}

// CompleteToolCall records the outcome of a tool invocation.
func (s *Store) CompleteToolCall(id, result, errText string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.Exec(`
		UPDATE tool_calls SET result = ?, error = ?, completed_at = ?, duration_ms = ?
		WHERE id = ?
	`, result, errText, now.Format(timeFormat), duration.Milliseconds(), id)
	return err
}

// RecentToolCalls returns the latest tool calls for a session, newest
// first, for the dashboard activity panel.
func (s *Store) RecentToolCalls(sessionID string, limit int) ([]ToolCallRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, tool_name, arguments, result, error, started_at, completed_at, duration_ms
		FROM tool_calls WHERE session_id = ?
		ORDER BY started_at DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent tool calls: %w", err)
	}
	defer rows.Close()

	var out []ToolCallRecord
	for rows.Next() {
		var r ToolCallRecord
		var result, errText, completed sql.NullString
		var duration sql.NullInt64
		var started string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ToolName, &r.Arguments,
			&result, &errText, &started, &completed, &duration); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		r.Result = result.String
		r.Error = errText.String
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if completed.Valid {
			t, _ := time.Parse(time.RFC3339Nano, completed.String)
			r.CompletedAt = &t
		}
		r.DurationMs = duration.Int64
		out = append(out, r)
	}
	return out, rows.Err()
}

// Clear removes a session and its entries.
func (s *Store) Clear(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM entries WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tool_calls WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Role, &e.Content, &e.ToolName,
			&ts, &e.TokenCount, &e.Compacted); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// estimateTokens provides a rough token count estimate.
// Rule of thumb: ~4 characters per token for English.
func estimateTokens(text string) int {
	return len(text) / 4
}
