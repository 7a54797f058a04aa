// Package projects stores the landing pages users build. Deletion is
// soft: rows keep their data and stop appearing in queries.
package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
)

// Service provides project CRUD scoped to the owning user.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// UpdateInput carries the optional fields of a project patch. Nil fields
// are left untouched.
type UpdateInput struct {
	Title      *string         `json:"title"`
	Data       json.RawMessage `json:"data"`
	PreviewURL *string         `json:"preview_url"`
}

// List returns the user's live projects, most recently updated first.
func (s *Service) List(ctx context.Context, userID int64) ([]models.ProjectListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, preview_url, updated_at
		FROM projects
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	items := []models.ProjectListItem{}
	for rows.Next() {
		var item models.ProjectListItem
		var previewURL sql.NullString
		if err := rows.Scan(&item.ID, &item.Title, &previewURL, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		item.PreviewURL = previewURL.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// Create stores a new project for the user.
func (s *Service) Create(ctx context.Context, userID int64, title string, data json.RawMessage, previewURL string) (*models.Project, error) {
	if title == "" || len(title) > 255 {
		return nil, fmt.Errorf("title must be between 1 and 255 characters")
	}
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	var project models.Project
	var preview sql.NullString
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (user_id, title, data, preview_url)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, user_id, title, data, preview_url, updated_at
	`, userID, title, string(data), previewURL).Scan(
		&project.ID, &project.UserID, &project.Title, (*[]byte)(&project.Data),
		&preview, &project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	project.PreviewURL = preview.String
	return &project, nil
}

// Get returns one of the user's projects, or models.ErrNotFound. Projects
// belonging to other users are indistinguishable from missing ones.
func (s *Service) Get(ctx context.Context, userID, projectID int64) (*models.Project, error) {
	var project models.Project
	var preview sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, data, preview_url, updated_at
		FROM projects
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, projectID, userID).Scan(
		&project.ID, &project.UserID, &project.Title, (*[]byte)(&project.Data),
		&preview, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	project.PreviewURL = preview.String
	return &project, nil
}

// Update applies a partial patch to one of the user's projects.
func (s *Service) Update(ctx context.Context, userID, projectID int64, input UpdateInput) error {
	if input.Title != nil && (*input.Title == "" || len(*input.Title) > 255) {
		return fmt.Errorf("title must be between 1 and 255 characters")
	}

	var data sql.NullString
	if input.Data != nil {
		data = sql.NullString{String: string(input.Data), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET
			title = COALESCE($1, title),
			data = COALESCE($2, data),
			preview_url = COALESCE($3, preview_url),
			updated_at = NOW()
		WHERE id = $4 AND user_id = $5 AND deleted_at IS NULL
	`, input.Title, data, input.PreviewURL, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return notFoundUnlessAffected(result)
}

// Delete marks the project deleted without discarding its data.
func (s *Service) Delete(ctx context.Context, userID, projectID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET deleted_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return notFoundUnlessAffected(result)
}

// CountForUser returns how many live projects the user owns.
func (s *Service) CountForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM projects WHERE user_id = $1 AND deleted_at IS NULL
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return count, nil
}

func notFoundUnlessAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}
