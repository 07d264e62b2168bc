// Package store provides persistent studio state: supply inventory,
// project records, and the portfolio. It is pure data access; tool
// semantics live in the tools package.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Sentinel errors surfaced to the tools layer.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStatusBackward indicates a project status mutation tried to move
	// backward without the explicit reset flag.
	ErrStatusBackward = errors.New("project status can only move forward without reset")

	// ErrPieceFrozen indicates an attempt to change the status or image
	// of a completed portfolio piece.
	ErrPieceFrozen = errors.New("completed piece status and image are frozen")
)

// Store manages studio state persistence. Writes are serialized through
// a mutex since sqlite allows a single writer; reads run concurrently.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates a store backed by a sqlite file at path.
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

// NewWithDB creates a store using an existing database connection.
// The caller keeps ownership of db's lifecycle when using this path
// alongside other stores sharing the connection.
func NewWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS supplies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT 'plenty',
			notes TEXT NOT NULL DEFAULT '',
			superseded_by TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_supplies_category ON supplies(category);
		CREATE INDEX IF NOT EXISTS idx_supplies_level ON supplies(level);
		CREATE INDEX IF NOT EXISTS idx_supplies_active ON supplies(superseded_by) WHERE superseded_by IS NULL;

		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'idea',
			medium TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);

		CREATE TABLE IF NOT EXISTS project_supplies (
			project_id TEXT NOT NULL,
			supply_id TEXT NOT NULL,
			linked_at TEXT NOT NULL,
			PRIMARY KEY (project_id, supply_id)
		);

		CREATE TABLE IF NOT EXISTS portfolio_pieces (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'sketch',
			image_path TEXT NOT NULL DEFAULT '',
			project_id TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_portfolio_status ON portfolio_pieces(status);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
