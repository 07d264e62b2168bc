package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level describes how much of a supply remains. Levels are categorical;
// there are no numeric quantities anywhere in the inventory.
type Level string

const (
	LevelPlenty Level = "plenty"
	LevelLow    Level = "low"
	LevelEmpty  Level = "empty"
)

// ParseLevel validates a level string.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelPlenty:
		return LevelPlenty, nil
	case LevelLow:
		return LevelLow, nil
	case LevelEmpty:
		return LevelEmpty, nil
	default:
		return "", fmt.Errorf("unknown level %q (valid: plenty, low, empty)", s)
	}
}

// Supply is one inventory item. Supplies are never deleted; re-adding
// the same name+brand supersedes the old row, which keeps history but
// drops out of listings.
type Supply struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Brand        string    `json:"brand,omitempty"`
	Color        string    `json:"color,omitempty"`
	Level        Level     `json:"level"`
	Notes        string    `json:"notes,omitempty"`
	SupersededBy string    `json:"superseded_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SupplyInput carries the fields for a new supply.
type SupplyInput struct {
	Name     string
	Category string
	Brand    string
	Color    string
	Level    Level
	Notes    string
}

// AddSupply inserts a supply. An existing active supply with the same
// name and brand (case-insensitive) is superseded by the new row.
func (s *Store) AddSupply(ctx context.Context, in SupplyInput) (*Supply, error) {
	if in.Level == "" {
		in.Level = LevelPlenty
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO supplies (id, name, category, brand, color, level, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id.String(), in.Name, in.Category, in.Brand, in.Color, string(in.Level), in.Notes,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert supply: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE supplies SET superseded_by = ?, updated_at = ?
		WHERE id != ? AND superseded_by IS NULL
		  AND lower(name) = lower(?) AND lower(brand) = lower(?)
	`, id.String(), now.Format(time.RFC3339), id.String(), in.Name, in.Brand)
	if err != nil {
		return nil, fmt.Errorf("supersede prior supply: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &Supply{
		ID:        id.String(),
		Name:      in.Name,
		Category:  in.Category,
		Brand:     in.Brand,
		Color:     in.Color,
		Level:     in.Level,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetSupply returns a supply by id, superseded or not.
func (s *Store) GetSupply(ctx context.Context, id string) (*Supply, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, brand, color, level, notes, superseded_by, created_at, updated_at
		FROM supplies WHERE id = ?
	`, id)
	return scanSupply(row)
}

// ListSupplies returns active supplies, optionally filtered by category,
// ordered by category then name.
func (s *Store) ListSupplies(ctx context.Context, category string) ([]Supply, error) {
	query := `
		SELECT id, name, category, brand, color, level, notes, superseded_by, created_at, updated_at
		FROM supplies WHERE superseded_by IS NULL
	`
	args := []any{}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list supplies: %w", err)
	}
	defer rows.Close()
	return collectSupplies(rows)
}

// SearchSupplies matches active supplies whose name, brand, color,
// category, or notes contain the query (case-insensitive).
func (s *Store) SearchSupplies(ctx context.Context, query string) ([]Supply, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, brand, color, level, notes, superseded_by, created_at, updated_at
		FROM supplies
		WHERE superseded_by IS NULL AND (
			lower(name) LIKE ? OR lower(brand) LIKE ? OR lower(color) LIKE ?
			OR lower(category) LIKE ? OR lower(notes) LIKE ?
		)
		ORDER BY category, name
	`, pattern, pattern, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search supplies: %w", err)
	}
	defer rows.Close()
	return collectSupplies(rows)
}

// SetSupplyLevel updates the level of an active supply.
func (s *Store) SetSupplyLevel(ctx context.Context, id string, level Level) (*Supply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE supplies SET level = ?, updated_at = ? WHERE id = ? AND superseded_by IS NULL
	`, string(level), now.Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("set level: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("supply %s: %w", id, ErrNotFound)
	}
	return s.GetSupply(ctx, id)
}

// LowStock returns active supplies at level low or empty, empties first.
func (s *Store) LowStock(ctx context.Context) ([]Supply, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, brand, color, level, notes, superseded_by, created_at, updated_at
		FROM supplies
		WHERE superseded_by IS NULL AND level IN ('low', 'empty')
		ORDER BY CASE level WHEN 'empty' THEN 0 ELSE 1 END, category, name
	`)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	defer rows.Close()
	return collectSupplies(rows)
}

// SupplySummary counts active supplies per level.
func (s *Store) SupplySummary(ctx context.Context) (map[Level]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT level, COUNT(*) FROM supplies WHERE superseded_by IS NULL GROUP BY level
	`)
	if err != nil {
		return nil, fmt.Errorf("supply summary: %w", err)
	}
	defer rows.Close()

	summary := map[Level]int{LevelPlenty: 0, LevelLow: 0, LevelEmpty: 0}
	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary[Level(level)] = count
	}
	return summary, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSupply(row rowScanner) (*Supply, error) {
	var sup Supply
	var superseded sql.NullString
	var created, updated string
	err := row.Scan(&sup.ID, &sup.Name, &sup.Category, &sup.Brand, &sup.Color,
		(*string)(&sup.Level), &sup.Notes, &superseded, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan supply: %w", err)
	}
	sup.SupersededBy = superseded.String
	sup.CreatedAt, _ = time.Parse(time.RFC3339, created)
	sup.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &sup, nil
}

func collectSupplies(rows *sql.Rows) ([]Supply, error) {
	var out []Supply
	for rows.Next() {
		sup, err := scanSupply(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sup)
	}
	return out, rows.Err()
}
