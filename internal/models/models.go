package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by store/service lookups when no row matches.
var ErrNotFound = errors.New("not found")

// User is an account owning projects and saved blocks.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Nickname     string    `json:"nickname,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	HasAvatar    bool      `json:"has_avatar"`
	TOTPSecret   string    `json:"-"`
	TOTPEnabled  bool      `json:"totp_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Project is a landing page owned by a user. Data holds the page
// description JSON as edited by the builder.
type Project struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Title      string          `json:"title"`
	Data       json.RawMessage `json:"data"`
	PreviewURL string          `json:"preview_url,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ProjectListItem is the trimmed shape returned by project listings.
type ProjectListItem struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	PreviewURL string    `json:"preview_url,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LibraryBlock is a reusable block template, either system-provided or
// uploaded by a user.
type LibraryBlock struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Tags        []string        `json:"tags"`
	Author      string          `json:"author,omitempty"`
	Preview     string          `json:"preview,omitempty"`
	Blocks      json.RawMessage `json:"blocks"`
	IsCustom    bool            `json:"is_custom"`
	CreatedAt   time.Time       `json:"created_at"`
}

// UserBlock is a block saved into a user's personal library.
type UserBlock struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Title      string          `json:"title"`
	Data       json.RawMessage `json:"data"`
	PreviewURL string          `json:"preview_url,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ProjectMedia records one uploaded asset stored in object storage.
type ProjectMedia struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Bucket      string    `json:"bucket"`
	ObjectName  string    `json:"object_name"`
	ETag        string    `json:"etag,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	FileURL     string    `json:"file_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
