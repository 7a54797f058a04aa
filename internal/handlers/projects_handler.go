package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/DENisProd/C0NSTRUCT0R/internal/auth"
	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
	"github.com/DENisProd/C0NSTRUCT0R/internal/projects"
)

// ProjectsHandler serves project CRUD for the authenticated user.
type ProjectsHandler struct {
	projects *projects.Service
}

func NewProjectsHandler(projectsService *projects.Service) *ProjectsHandler {
	return &ProjectsHandler{projects: projectsService}
}

type CreateProjectRequest struct {
	Title      string          `json:"title"`
	Data       json.RawMessage `json:"data"`
	PreviewURL string          `json:"preview_url"`
}

// List returns the caller's projects. The userId query parameter must
// match the authenticated account.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
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

	items, err := h.projects.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Create stores a new project.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	project, err := h.projects.Create(r.Context(), user.ID, req.Title, req.Data, req.PreviewURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// Get returns one project.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Get(r.Context(), user.ID, projectID)
	if err != nil {
		respondProjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Update applies a partial patch to a project.
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	var input projects.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.projects.Update(r.Context(), user.ID, projectID, input); err != nil {
		respondProjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Project updated"})
}

// Delete soft-deletes a project.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, projectID, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), user.ID, projectID); err != nil {
		respondProjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Project deleted"})
}

// requestScope extracts the authenticated user and the project id path
// variable, answering the request itself when either is missing.
func (h *ProjectsHandler) requestScope(w http.ResponseWriter, r *http.Request) (*models.User, int64, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, 0, false
	}
	projectID, err := strconv.ParseInt(mux.Vars(r)["project_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return nil, 0, false
	}
	return user, projectID, true
}

func respondProjectError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
