// Package library stores the shared catalog of page blocks: system blocks
// shipped with the product and custom blocks uploaded by users.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
)

var ErrSystemBlock = errors.New("system blocks cannot be modified")

// Service provides catalog queries and custom block management.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Filter narrows catalog queries. Zero values mean "any".
type Filter struct {
	Category string
	Author   string
	Tags     []string
	IsCustom *bool
}

// ParseTags splits the comma-separated tags query parameter.
func ParseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// BlockInput is the creation payload for catalog blocks.
type BlockInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Tags        []string        `json:"tags"`
	Blocks      json.RawMessage `json:"blocks"`
	Preview     string          `json:"preview"`
	Author      string          `json:"author"`
}

// ValidateConfig checks that a block configuration is a list of objects
// each carrying an id and a type, descending into container children.
// Returns the id of the first bad entry.
func ValidateConfig(config json.RawMessage) (string, error) {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(config, &entries); err != nil {
		return "", fmt.Errorf("block configuration must be a list of objects")
	}
	return validateEntries(entries)
}

func validateEntries(entries []map[string]json.RawMessage) (string, error) {
	for _, entry := range entries {
		var id, kind string
		json.Unmarshal(entry["id"], &id)
		json.Unmarshal(entry["type"], &kind)
		if id == "" || kind == "" {
			if id == "" {
				id = "unknown"
			}
			return id, fmt.Errorf("block %s is missing an id or type", id)
		}
		if raw, ok := entry["children"]; ok {
			var children []map[string]json.RawMessage
			if err := json.Unmarshal(raw, &children); err != nil {
				return id, fmt.Errorf("block %s has malformed children", id)
			}
			if bad, err := validateEntries(children); err != nil {
				return bad, err
			}
		}
	}
	return "", nil
}

// List returns catalog blocks matching the filter. Tag filtering matches
// any of the requested tags.
func (s *Service) List(ctx context.Context, filter Filter) ([]models.LibraryBlock, error) {
	query := `
		SELECT id, name, description, category, tags, author, preview, json_config, is_custom, created_at
		FROM library_blocks
		WHERE 1=1`
	args := []interface{}{}

	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.Author != "" {
		args = append(args, filter.Author)
		query += fmt.Sprintf(" AND author = $%d", len(args))
	}
	if filter.IsCustom != nil {
		args = append(args, *filter.IsCustom)
		query += fmt.Sprintf(" AND is_custom = $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()

	blocks := []models.LibraryBlock{}
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		if matchesTags(block.Tags, filter.Tags) {
			blocks = append(blocks, *block)
		}
	}
	return blocks, rows.Err()
}

// matchesTags reports whether the block carries at least one wanted tag.
// An empty filter matches everything.
func matchesTags(blockTags, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, want := range wanted {
		for _, tag := range blockTags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

// Get returns one catalog block by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.LibraryBlock, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, tags, author, preview, json_config, is_custom, created_at
		FROM library_blocks
		WHERE id = $1
	`, id)
	return scanBlock(row)
}

// Create stores a catalog block. Custom blocks default their author to
// "user", system blocks to "system".
func (s *Service) Create(ctx context.Context, input BlockInput, isCustom bool) (*models.LibraryBlock, error) {
	if _, err := ValidateConfig(input.Blocks); err != nil {
		return nil, err
	}

	author := input.Author
	if author == "" {
		if isCustom {
			author = "user"
		} else {
			author = "system"
		}
	}
	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO library_blocks (name, description, category, tags, author, preview, json_config, is_custom)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		RETURNING id
	`, input.Name, input.Description, input.Category, string(tagsJSON), author, input.Preview, string(input.Blocks), isCustom).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create block: %w", err)
	}
	return s.Get(ctx, id)
}

// Update modifies a custom block. System blocks are immutable.
func (s *Service) Update(ctx context.Context, id int64, input BlockInput) (*models.LibraryBlock, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsCustom {
		return nil, ErrSystemBlock
	}

	if input.Name != "" {
		existing.Name = input.Name
	}
	if input.Description != "" {
		existing.Description = input.Description
	}
	if input.Category != "" {
		existing.Category = input.Category
	}
	if input.Tags != nil {
		existing.Tags = input.Tags
	}
	if input.Preview != "" {
		existing.Preview = input.Preview
	}
	if input.Blocks != nil {
		if _, err := ValidateConfig(input.Blocks); err != nil {
			return nil, err
		}
		existing.Blocks = input.Blocks
	}

	tagsJSON, err := json.Marshal(existing.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE library_blocks
		SET name = $1, description = $2, category = $3, tags = $4, preview = NULLIF($5, ''), json_config = $6
		WHERE id = $7
	`, existing.Name, existing.Description, existing.Category, string(tagsJSON), existing.Preview, string(existing.Blocks), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update block: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete removes a custom block. System blocks are immutable.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !existing.IsCustom {
		return ErrSystemBlock
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM library_blocks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete block: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBlock(row rowScanner) (*models.LibraryBlock, error) {
	var block models.LibraryBlock
	var description, category, author, preview sql.NullString
	var tagsJSON []byte
	err := row.Scan(
		&block.ID, &block.Name, &description, &category, &tagsJSON,
		&author, &preview, (*[]byte)(&block.Blocks), &block.IsCustom, &block.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan block: %w", err)
	}
	block.Description = description.String
	block.Category = category.String
	block.Author = author.String
	block.Preview = preview.String
	if err := json.Unmarshal(tagsJSON, &block.Tags); err != nil || block.Tags == nil {
		block.Tags = []string{}
	}
	return &block, nil
}
