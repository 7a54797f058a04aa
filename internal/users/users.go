// Package users exposes account profiles.
package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
)

// Profile is the account view returned by the profile endpoints,
// including usage counters.
type Profile struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Nickname      string `json:"nickname,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	HasAvatar     bool   `json:"has_avatar"`
	TOTPEnabled   bool   `json:"totp_enabled"`
	ProjectsCount int    `json:"projects_count"`
	BlocksCount   int    `json:"blocks_count"`
}

// UpdateInput carries the editable profile fields. Nil fields are left
// untouched.
type UpdateInput struct {
	Nickname  *string `json:"nickname"`
	AvatarURL *string `json:"avatar_url"`
}

// Service reads and updates profiles.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Profile assembles the profile view for an already-loaded user.
func (s *Service) Profile(ctx context.Context, user *models.User) (*Profile, error) {
	profile := &Profile{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Nickname:    user.Nickname,
		AvatarURL:   user.AvatarURL,
		HasAvatar:   user.HasAvatar,
		TOTPEnabled: user.TOTPEnabled,
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM projects WHERE user_id = $1 AND deleted_at IS NULL),
			(SELECT COUNT(*) FROM user_blocks WHERE user_id = $1)
	`, user.ID).Scan(&profile.ProjectsCount, &profile.BlocksCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count user content: %w", err)
	}
	return profile, nil
}

// Update applies profile edits and returns the fresh profile. Setting an
// avatar URL also flips the has_avatar flag.
func (s *Service) Update(ctx context.Context, user *models.User, input UpdateInput) (*Profile, error) {
	if input.Nickname != nil {
		user.Nickname = *input.Nickname
	}
	if input.AvatarURL != nil {
		user.AvatarURL = *input.AvatarURL
		user.HasAvatar = *input.AvatarURL != ""
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET nickname = NULLIF($1, ''), avatar_url = NULLIF($2, ''), has_avatar = $3, updated_at = NOW()
		WHERE id = $4
	`, user.Nickname, user.AvatarURL, user.HasAvatar, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.Profile(ctx, user)
}

// SetAvatar records a freshly uploaded avatar.
func (s *Service) SetAvatar(ctx context.Context, user *models.User, avatarURL string) error {
	user.AvatarURL = avatarURL
	user.HasAvatar = true
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET avatar_url = $1, has_avatar = TRUE, updated_at = NOW() WHERE id = $2
	`, avatarURL, user.ID)
	if err != nil {
		return fmt.Errorf("failed to set avatar: %w", err)
	}
	return nil
}
