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

// ProjectStatus is the lifecycle stage of a project.
type ProjectStatus string

const (
	StatusIdea       ProjectStatus = "idea"
	StatusInProgress ProjectStatus = "in_progress"
	StatusCompleted  ProjectStatus = "completed"
)

// ParseProjectStatus validates a project status string.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch ProjectStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusIdea:
		return StatusIdea, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusCompleted:
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("unknown project status %q (valid: idea, in_progress, completed)", s)
	}
}

// statusRank orders statuses for the forward-only guard.
func statusRank(s ProjectStatus) int {
	switch s {
	case StatusIdea:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// Project is a creative project in the studio.
type Project struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Status      ProjectStatus `json:"status"`
	Medium      string        `json:"medium,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// ProjectInput carries the fields for a new project.
type ProjectInput struct {
	Title  string
	Medium string
	Notes  string
	Status ProjectStatus // Defaults to idea
}

// CreateProject inserts a new project.
func (s *Store) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	if in.Status == "" {
		in.Status = StatusIdea
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, title, status, medium, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id.String(), in.Title, string(in.Status), in.Medium, in.Notes,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	return &Project{
		ID:        id.String(),
		Title:     in.Title,
		Status:    in.Status,
		Medium:    in.Medium,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetProject returns a project by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, status, medium, notes, created_at, updated_at, completed_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects returns projects, optionally filtered by status, newest first.
func (s *Store) ListProjects(ctx context.Context, status ProjectStatus) ([]Project, error) {
	query := `
		SELECT id, title, status, medium, notes, created_at, updated_at, completed_at
		FROM projects
	`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SetProjectStatus moves a project's status. Status only moves forward
// (idea, in_progress, completed) unless reset is set, which allows any
// transition. completed_at is stamped on the first move into completed.
func (s *Store) SetProjectStatus(ctx context.Context, id string, status ProjectStatus, reset bool) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	if !reset && statusRank(status) < statusRank(current.Status) {
		return nil, fmt.Errorf("%s to %s: %w", current.Status, status, ErrStatusBackward)
	}

	now := time.Now().UTC()
	var completedAt any
	if current.CompletedAt != nil {
		completedAt = current.CompletedAt.Format(time.RFC3339)
	}
	if status == StatusCompleted && current.CompletedAt == nil {
		completedAt = now.Format(time.RFC3339)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE projects SET status = ?, updated_at = ?, completed_at = ? WHERE id = ?
	`, string(status), now.Format(time.RFC3339), completedAt, id)
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}

	return s.GetProject(ctx, id)
}

// CompleteProject marks a project completed and files the finished work
// as a completed portfolio piece in one transaction, so a failure on
// either side leaves both untouched.
func (s *Store) CompleteProject(ctx context.Context, projectID string, piece PieceInput) (*Project, *PortfolioPiece, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanProject(tx.QueryRowContext(ctx, `
		SELECT id, title, status, medium, notes, created_at, updated_at, completed_at
		FROM projects WHERE id = ?
	`, projectID))
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	var completedAt string
	if current.CompletedAt != nil {
		completedAt = current.CompletedAt.Format(time.RFC3339)
	} else {
		completedAt = now.Format(time.RFC3339)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET status = ?, updated_at = ?, completed_at = ? WHERE id = ?
	`, string(StatusCompleted), now.Format(time.RFC3339), completedAt, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("complete project: %w", err)
	}

	if piece.Title == "" {
		piece.Title = current.Title
	}
	pieceID, err := uuid.NewV7()
	if err != nil {
		return nil, nil, fmt.Errorf("generate id: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolio_pieces (id, title, status, image_path, project_id, description, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, pieceID.String(), piece.Title, string(PieceCompleted), piece.ImagePath, projectID,
		piece.Description, now.Format(time.RFC3339), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, nil, fmt.Errorf("file portfolio piece: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	filed, err := s.GetPiece(ctx, pieceID.String())
	if err != nil {
		return nil, nil, err
	}
	return project, filed, nil
}

// AddProjectNote appends a timestamped note to the project's notes.
func (s *Store) AddProjectNote(ctx context.Context, id, note string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := fmt.Sprintf("[%s] %s", now.Format("2006-01-02"), note)
	notes := current.Notes
	if notes != "" {
		notes += "\n"
	}
	notes += entry

	_, err = s.db.ExecContext(ctx, `
		UPDATE projects SET notes = ?, updated_at = ? WHERE id = ?
	`, notes, now.Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}

	return s.GetProject(ctx, id)
}

// LinkSupply records that a project consumes a supply. Linking the same
// pair twice is a no-op.
func (s *Store) LinkSupply(ctx context.Context, projectID, supplyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.GetProject(ctx, projectID); err != nil {
		return fmt.Errorf("project %s: %w", projectID, err)
	}
	if _, err := s.GetSupply(ctx, supplyID); err != nil {
		return fmt.Errorf("supply %s: %w", supplyID, err)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO project_supplies (project_id, supply_id, linked_at)
		VALUES (?, ?, ?)
	`, projectID, supplyID, now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("link supply: %w", err)
	}
	return nil
}

// ProjectSummary counts projects per status.
func (s *Store) ProjectSummary(ctx context.Context) (map[ProjectStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM projects GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("project summary: %w", err)
	}
	defer rows.Close()

	summary := map[ProjectStatus]int{StatusIdea: 0, StatusInProgress: 0, StatusCompleted: 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary[ProjectStatus(status)] = count
	}
	return summary, rows.Err()
}

// ProjectSupplies returns the supplies linked to a project.
func (s *Store) ProjectSupplies(ctx context.Context, projectID string) ([]Supply, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.category, s.brand, s.color, s.level, s.notes,
		       s.superseded_by, s.created_at, s.updated_at
		FROM supplies s
		JOIN project_supplies ps ON ps.supply_id = s.id
		WHERE ps.project_id = ?
		ORDER BY s.category, s.name
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project supplies: %w", err)
	}
	defer rows.Close()
	return collectSupplies(rows)
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var created, updated string
	var completed sql.NullString
	err := row.Scan(&p.ID, &p.Title, (*string)(&p.Status), &p.Medium, &p.Notes,
		&created, &updated, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	if completed.Valid {
		t, _ := time.Parse(time.RFC3339, completed.String)
		p.CompletedAt = &t
	}
	return &p, nil
}
