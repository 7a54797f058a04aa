package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/DENisProd/C0NSTRUCT0R/internal/palette"
)

// PaletteHandler serves palette presets, generation and application.
type PaletteHandler struct {
	palettes *palette.Service
}

func NewPaletteHandler(paletteService *palette.Service) *PaletteHandler {
	return &PaletteHandler{palettes: paletteService}
}

type ApplyPaletteRequest struct {
	Blocks  []map[string]json.RawMessage `json:"blocks"`
	Palette palette.Scheme               `json:"palette"`
}

type GeneratePaletteRequest struct {
	Description string `json:"description"`
}

type CreatePaletteRequest struct {
	Name        string         `json:"name"`
	ProjectID   *int64         `json:"project_id"`
	Palette     palette.Scheme `json:"palette"`
	Description string         `json:"description"`
	IsPreset    bool           `json:"is_preset"`
}

// Apply recolors a block tree with the given scheme.
func (h *PaletteHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyPaletteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocks": palette.Apply(req.Blocks, req.Palette),
	})
}

// List returns the preset palettes.
func (h *PaletteHandler) List(w http.ResponseWriter, r *http.Request) {
	presets, err := h.palettes.Presets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

// Generate picks a scheme for a free-text description.
func (h *PaletteHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GeneratePaletteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, palette.GenerateFromDescription(req.Description))
}

// Create stores a palette.
func (h *PaletteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePaletteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.palettes.Create(r.Context(), req.Name, req.ProjectID, req.Palette, req.Description, req.IsPreset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, created)
}
