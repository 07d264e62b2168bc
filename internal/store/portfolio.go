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

// PieceStatus is the lifecycle stage of a portfolio piece.
type PieceStatus string

const (
	PieceSketch    PieceStatus = "sketch"
	PieceWIP       PieceStatus = "wip"
	PieceCompleted PieceStatus = "completed"
)

// ParsePieceStatus validates a piece status string.
func ParsePieceStatus(s string) (PieceStatus, error) {
	switch PieceStatus(strings.ToLower(strings.TrimSpace(s))) {
	case PieceSketch:
		return PieceSketch, nil
	case PieceWIP:
		return PieceWIP, nil
	case PieceCompleted:
		return PieceCompleted, nil
	default:
		return "", fmt.Errorf("unknown piece status %q (valid: sketch, wip, completed)", s)
	}
}

// PortfolioPiece is one work in the portfolio. Images live in external
// storage; only the path is recorded here.
type PortfolioPiece struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Status      PieceStatus `json:"status"`
	ImagePath   string      `json:"image_path,omitempty"`
	ProjectID   string      `json:"project_id,omitempty"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// PieceInput carries the fields for a new portfolio piece.
type PieceInput struct {
	Title       string
	Status      PieceStatus // Defaults to sketch
	ImagePath   string
	ProjectID   string
	Description string
}

// PieceUpdate carries optional changes to a piece. Nil fields are left
// untouched.
type PieceUpdate struct {
	Title       *string
	Description *string
	Status      *PieceStatus
	ImagePath   *string
}

// AddPiece inserts a portfolio piece.
func (s *Store) AddPiece(ctx context.Context, in PieceInput) (*PortfolioPiece, error) {
	if in.Status == "" {
		in.Status = PieceSketch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}

	var completedAt any
	if in.Status == PieceCompleted {
		completedAt = now.Format(time.RFC3339)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO portfolio_pieces (id, title, status, image_path, project_id, description, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id.String(), in.Title, string(in.Status), in.ImagePath, in.ProjectID, in.Description,
		now.Format(time.RFC3339), now.Format(time.RFC3339), completedAt)
	if err != nil {
		return nil, fmt.Errorf("insert piece: %w", err)
	}

	return s.GetPiece(ctx, id.String())
}

// GetPiece returns a portfolio piece by id.
func (s *Store) GetPiece(ctx context.Context, id string) (*PortfolioPiece, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, status, image_path, project_id, description, created_at, updated_at, completed_at
		FROM portfolio_pieces WHERE id = ?
	`, id)
	return scanPiece(row)
}

// ListPieces returns portfolio pieces, optionally filtered by status,
// newest first.
func (s *Store) ListPieces(ctx context.Context, status PieceStatus) ([]PortfolioPiece, error) {
	query := `
		SELECT id, title, status, image_path, project_id, description, created_at, updated_at, completed_at
		FROM portfolio_pieces
	`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pieces: %w", err)
	}
	defer rows.Close()

	var out []PortfolioPiece
	for rows.Next() {
		p, err := scanPiece(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdatePiece applies changes to a piece. Once a piece is completed its
// status and image are frozen; title and description stay editable.
// completed_at is stamped on the first move into completed.
func (s *Store) UpdatePiece(ctx context.Context, id string, up PieceUpdate) (*PortfolioPiece, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.GetPiece(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Status == PieceCompleted {
		if up.Status != nil && *up.Status != PieceCompleted {
			return nil, fmt.Errorf("piece %s: %w", id, ErrPieceFrozen)
		}
		if up.ImagePath != nil && *up.ImagePath != current.ImagePath {
			return nil, fmt.Errorf("piece %s: %w", id, ErrPieceFrozen)
		}
	}

	title := current.Title
	if up.Title != nil {
		title = *up.Title
	}
	description := current.Description
	if up.Description != nil {
		description = *up.Description
	}
	status := current.Status
	if up.Status != nil {
		status = *up.Status
	}
	imagePath := current.ImagePath
	if up.ImagePath != nil {
		imagePath = *up.ImagePath
	}

	now := time.Now().UTC()
	var completedAt any
	if current.CompletedAt != nil {
		completedAt = current.CompletedAt.Format(time.RFC3339)
	} else if status == PieceCompleted {
		completedAt = now.Format(time.RFC3339)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE portfolio_pieces
		SET title = ?, description = ?, status = ?, image_path = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`, title, description, string(status), imagePath, now.Format(time.RFC3339), completedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update piece: %w", err)
	}

	return s.GetPiece(ctx, id)
}

// AddProgressImage attaches a new image to a piece. A sketch with a
// progress image is promoted to wip. Completed pieces are frozen.
func (s *Store) AddProgressImage(ctx context.Context, id, imagePath string) (*PortfolioPiece, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.GetPiece(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == PieceCompleted {
		return nil, fmt.Errorf("piece %s: %w", id, ErrPieceFrozen)
	}

	status := current.Status
	if status == PieceSketch {
		status = PieceWIP
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE portfolio_pieces SET image_path = ?, status = ?, updated_at = ? WHERE id = ?
	`, imagePath, string(status), now.Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("add progress image: %w", err)
	}

	return s.GetPiece(ctx, id)
}

// PortfolioStats summarizes the portfolio.
type PortfolioStats struct {
	Total      int `json:"total"`
	Sketches   int `json:"sketches"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	WithImages int `json:"with_images"`
}

// Stats counts pieces per status.
func (s *Store) Stats(ctx context.Context) (*PortfolioStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*), SUM(CASE WHEN image_path != '' THEN 1 ELSE 0 END)
		FROM portfolio_pieces GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("portfolio stats: %w", err)
	}
	defer rows.Close()

	var stats PortfolioStats
	for rows.Next() {
		var status string
		var count, withImages int
		if err := rows.Scan(&status, &count, &withImages); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		stats.WithImages += withImages
		switch PieceStatus(status) {
		case PieceSketch:
			stats.Sketches = count
		case PieceWIP:
			stats.InProgress = count
		case PieceCompleted:
			stats.Completed = count
		}
	}
	return &stats, rows.Err()
}

func scanPiece(row rowScanner) (*PortfolioPiece, error) {
	var p PortfolioPiece
	var created, updated string
	var completed sql.NullString
	err := row.Scan(&p.ID, &p.Title, (*string)(&p.Status), &p.ImagePath, &p.ProjectID,
		&p.Description, &created, &updated, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan piece: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	if completed.Valid {
		t, _ := time.Parse(time.RFC3339, completed.String)
		p.CompletedAt = &t
	}
	return &p, nil
}
