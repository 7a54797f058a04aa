package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
)

// UserBlocks returns the user's saved blocks, newest first.
func (s *Service) UserBlocks(ctx context.Context, userID int64) ([]models.UserBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, data, preview_url, created_at
		FROM user_blocks
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user blocks: %w", err)
	}
	defer rows.Close()

	blocks := []models.UserBlock{}
	for rows.Next() {
		var block models.UserBlock
		var previewURL sql.NullString
		err := rows.Scan(&block.ID, &block.UserID, &block.Title,
			(*[]byte)(&block.Data), &previewURL, &block.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user block: %w", err)
		}
		block.PreviewURL = previewURL.String
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

// SaveUserBlock stores a block into the user's personal library.
func (s *Service) SaveUserBlock(ctx context.Context, userID int64, title string, data json.RawMessage, previewURL string) (*models.UserBlock, error) {
	if title == "" || len(title) > 255 {
		return nil, fmt.Errorf("title must be between 1 and 255 characters")
	}
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	var block models.UserBlock
	var preview sql.NullString
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_blocks (user_id, title, data, preview_url)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, user_id, title, data, preview_url, created_at
	`, userID, title, string(data), previewURL).Scan(
		&block.ID, &block.UserID, &block.Title,
		(*[]byte)(&block.Data), &preview, &block.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save user block: %w", err)
	}
	block.PreviewURL = preview.String
	return &block, nil
}

// DeleteUserBlock removes one of the user's saved blocks.
func (s *Service) DeleteUserBlock(ctx context.Context, userID, blockID int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM user_blocks WHERE id = $1 AND user_id = $2
	`, blockID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user block: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountUserBlocks returns how many blocks the user has saved.
func (s *Service) CountUserBlocks(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_blocks WHERE user_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user blocks: %w", err)
	}
	return count, nil
}
