package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/DENisProd/C0NSTRUCT0R/internal/collab"
)

// RoomsHandler exposes read-only room state over HTTP.
type RoomsHandler struct {
	registry *collab.Registry
}

func NewRoomsHandler(registry *collab.Registry) *RoomsHandler {
	return &RoomsHandler{registry: registry}
}

// Info returns the roster and document status of a room. A room exists
// only after its first join; before that the lookup is a 404.
func (h *RoomsHandler) Info(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	info, ok := h.registry.Info(roomID)
	if !ok {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}
