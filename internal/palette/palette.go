// Package palette manages color palettes for landing pages: presets,
// generation from a text description, and recoloring block trees.
package palette

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Scheme is the color set applied to a page.
type Scheme struct {
	Name             string   `json:"name,omitempty"`
	Primary          string   `json:"primary"`
	Secondary        string   `json:"secondary"`
	Background       string   `json:"background"`
	Text             string   `json:"text"`
	Accent           string   `json:"accent"`
	Surface          string   `json:"surface,omitempty"`
	Border           string   `json:"border,omitempty"`
	AdditionalColors []string `json:"additional_colors,omitempty"`
}

// Palette is a stored scheme, optionally bound to a project.
type Palette struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ProjectID   *int64    `json:"project_id,omitempty"`
	Scheme      Scheme    `json:"palette"`
	Description string    `json:"description,omitempty"`
	IsPreset    bool      `json:"is_preset"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service stores palettes and exposes the generator.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create stores a palette.
func (s *Service) Create(ctx context.Context, name string, projectID *int64, scheme Scheme, description string, isPreset bool) (*Palette, error) {
	if name == "" {
		name = "Palette"
	}
	additional := scheme.AdditionalColors
	if additional == nil {
		additional = []string{}
	}
	additionalJSON, err := json.Marshal(additional)
	if err != nil {
		return nil, fmt.Errorf("failed to encode additional colors: %w", err)
	}

	palette := Palette{
		Name:        name,
		ProjectID:   projectID,
		Scheme:      scheme,
		Description: description,
		IsPreset:    isPreset,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO palettes (name, project_id, "primary", secondary, background, text, accent, surface, border, additional_colors, description, is_preset)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, NULLIF($11, ''), $12)
		RETURNING id, created_at
	`, name, projectID, scheme.Primary, scheme.Secondary, scheme.Background, scheme.Text,
		scheme.Accent, scheme.Surface, scheme.Border, string(additionalJSON), description, isPreset,
	).Scan(&palette.ID, &palette.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create palette: %w", err)
	}
	return &palette, nil
}

// Presets lists the stored preset palettes.
func (s *Service) Presets(ctx context.Context) ([]Palette, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, project_id, "primary", secondary, background, text, accent,
		       surface, border, additional_colors, description, is_preset, created_at
		FROM palettes
		WHERE is_preset = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	defer rows.Close()

	palettes := []Palette{}
	for rows.Next() {
		var p Palette
		var projectID sql.NullInt64
		var surface, border, description sql.NullString
		var additionalJSON []byte
		err := rows.Scan(&p.ID, &p.Name, &projectID,
			&p.Scheme.Primary, &p.Scheme.Secondary, &p.Scheme.Background, &p.Scheme.Text, &p.Scheme.Accent,
			&surface, &border, &additionalJSON, &description, &p.IsPreset, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan palette: %w", err)
		}
		if projectID.Valid {
			p.ProjectID = &projectID.Int64
		}
		p.Scheme.Name = p.Name
		p.Scheme.Surface = surface.String
		p.Scheme.Border = border.String
		p.Description = description.String
		if err := json.Unmarshal(additionalJSON, &p.Scheme.AdditionalColors); err != nil {
			p.Scheme.AdditionalColors = nil
		}
		palettes = append(palettes, p)
	}
	return palettes, rows.Err()
}

// SeedPresets stores the built-in presets once. A database that already
// has any preset is left alone.
func (s *Service) SeedPresets(ctx context.Context) error {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM palettes WHERE is_preset = TRUE`).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count presets: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, scheme := range PresetSchemes() {
		if _, err := s.Create(ctx, scheme.Name, nil, scheme, "", true); err != nil {
			return fmt.Errorf("failed to seed preset %q: %w", scheme.Name, err)
		}
	}
	log.Printf("[INFO] Seeded %d preset palettes", len(PresetSchemes()))
	return nil
}

// Apply recolors a block tree in place according to the scheme. Text
// blocks take the text color, buttons the accent on white, containers the
// surface color falling back to the background. Children are recolored
// recursively; all other fields pass through untouched.
func Apply(blocks []map[string]json.RawMessage, scheme Scheme) []map[string]json.RawMessage {
	recolored := make([]map[string]json.RawMessage, 0, len(blocks))
	for _, block := range blocks {
		recolored = append(recolored, applyToBlock(block, scheme))
	}
	return recolored
}

func applyToBlock(block map[string]json.RawMessage, scheme Scheme) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(block))
	for key, value := range block {
		out[key] = value
	}

	var kind string
	json.Unmarshal(out["type"], &kind)

	style := map[string]json.RawMessage{}
	json.Unmarshal(out["style"], &style)

	switch kind {
	case "text":
		style["color"] = quote(scheme.Text)
	case "button":
		style["backgroundColor"] = quote(scheme.Accent)
		style["color"] = quote("#ffffff")
	case "container":
		surface := scheme.Surface
		if surface == "" {
			surface = scheme.Background
		}
		style["backgroundColor"] = quote(surface)
	}
	if styleJSON, err := json.Marshal(style); err == nil {
		out["style"] = styleJSON
	}

	var children []map[string]json.RawMessage
	if json.Unmarshal(out["children"], &children) == nil && children != nil {
		if childrenJSON, err := json.Marshal(Apply(children, scheme)); err == nil {
			out["children"] = childrenJSON
		}
	}
	return out
}

func quote(value string) json.RawMessage {
	data, _ := json.Marshal(value)
	return data
}
