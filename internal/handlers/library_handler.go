package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/DENisProd/C0NSTRUCT0R/internal/auth"
	"github.com/DENisProd/C0NSTRUCT0R/internal/library"
	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
)

// LibraryHandler serves the shared block catalog and users' personal
// block collections.
type LibraryHandler struct {
	library *library.Service
}

func NewLibraryHandler(libraryService *library.Service) *LibraryHandler {
	return &LibraryHandler{library: libraryService}
}

// Blocks lists catalog blocks with optional category, tags, author and
// is_custom filters.
func (h *LibraryHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := library.Filter{
		Category: query.Get("category"),
		Author:   query.Get("author"),
		Tags:     library.ParseTags(query.Get("tags")),
	}
	if raw := query.Get("is_custom"); raw != "" {
		isCustom := raw == "true"
		filter.IsCustom = &isCustom
	}

	blocks, err := h.library.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

// Ready lists only the system blocks.
func (h *LibraryHandler) Ready(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	isCustom := false
	filter := library.Filter{
		Category: query.Get("category"),
		Author:   query.Get("author"),
		Tags:     library.ParseTags(query.Get("tags")),
		IsCustom: &isCustom,
	}

	blocks, err := h.library.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

// Block returns one catalog block.
func (h *LibraryHandler) Block(w http.ResponseWriter, r *http.Request) {
	blockID, err := strconv.ParseInt(mux.Vars(r)["block_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block id")
		return
	}

	block, err := h.library.Get(r.Context(), blockID)
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// Upload stores a custom block into the catalog.
func (h *LibraryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, true)
}

// CreateReady stores a system block into the catalog.
func (h *LibraryHandler) CreateReady(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, false)
}

func (h *LibraryHandler) create(w http.ResponseWriter, r *http.Request, isCustom bool) {
	var input library.BlockInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	block, err := h.library.Create(r.Context(), input, isCustom)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// UpdateBlock edits a custom catalog block.
func (h *LibraryHandler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	blockID, err := strconv.ParseInt(mux.Vars(r)["block_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block id")
		return
	}

	var input library.BlockInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	block, err := h.library.Update(r.Context(), blockID, input)
	if err != nil {
		respondLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// DeleteBlock removes a custom catalog block.
func (h *LibraryHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	blockID, err := strconv.ParseInt(mux.Vars(r)["block_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block id")
		return
	}

	if err := h.library.Delete(r.Context(), blockID); err != nil {
		respondLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Block deleted"})
}

type SaveUserBlockRequest struct {
	Title      string          `json:"title"`
	Data       json.RawMessage `json:"data"`
	PreviewURL string          `json:"preview_url"`
}

// UserBlocks lists the caller's saved blocks. The userId query parameter
// must match the authenticated account.
func (h *LibraryHandler) UserBlocks(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	requested, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}
	if requested != user.ID {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}

	blocks, err := h.library.UserBlocks(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

// SaveUserBlock stores a block into the caller's personal library.
func (h *LibraryHandler) SaveUserBlock(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SaveUserBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	block, err := h.library.SaveUserBlock(r.Context(), user.ID, req.Title, req.Data, req.PreviewURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

// DeleteUserBlock removes one of the caller's saved blocks.
func (h *LibraryHandler) DeleteUserBlock(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	blockID, err := strconv.ParseInt(mux.Vars(r)["block_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block id")
		return
	}

	if err := h.library.DeleteUserBlock(r.Context(), user.ID, blockID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Block not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Block deleted"})
}

func respondLibraryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "Block not found")
	case errors.Is(err, library.ErrSystemBlock):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
