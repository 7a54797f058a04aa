package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/DENisProd/C0NSTRUCT0R/internal/ai"
)

// AIHandler serves landing generation endpoints.
type AIHandler struct {
	ai *ai.Service
}

func NewAIHandler(aiService *ai.Service) *AIHandler {
	return &AIHandler{ai: aiService}
}

type GenerateLandingRequest struct {
	Prompt     string   `json:"prompt"`
	Categories []string `json:"categories"`
}

// GenerateLanding builds a landing page layout from a text prompt.
func (h *AIHandler) GenerateLanding(w http.ResponseWriter, r *http.Request) {
	var req GenerateLandingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	landing, err := h.ai.GenerateLanding(r.Context(), req.Prompt, req.Categories)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, landing)
}

// SupportedBlocks lists the block kinds the generator can emit.
func (h *AIHandler) SupportedBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"blocks": ai.SupportedBlocks()})
}
