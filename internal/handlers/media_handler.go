package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/DENisProd/C0NSTRUCT0R/internal/auth"
	"github.com/DENisProd/C0NSTRUCT0R/internal/media"
	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
	"github.com/DENisProd/C0NSTRUCT0R/internal/projects"
)

// maxMediaUpload bounds project media uploads to 20 MB before decoding.
const maxMediaUpload = 20 << 20

// MediaHandler serves project media uploads and downloads.
type MediaHandler struct {
	media    *media.Service
	projects *projects.Service
}

func NewMediaHandler(mediaService *media.Service, projectsService *projects.Service) *MediaHandler {
	return &MediaHandler{media: mediaService, projects: projectsService}
}

// Upload stores one image for a project.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	_, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	file, header, err := readUpload(r, maxMediaUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.media.UploadProjectMedia(r.Context(), projectID, header.Filename, header.ContentType, file)
	if err != nil {
		if errors.Is(err, media.ErrNotAnImage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// List returns the media records of a project.
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	_, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	items, err := h.media.ListForProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// StreamByETag streams a stored object addressed by its etag, scoped to
// the caller's projects.
func (h *MediaHandler) StreamByETag(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	etag := mux.Vars(r)["etag"]

	record, object, err := h.media.StreamByETag(r.Context(), user.ID, etag)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer object.Close()

	contentType := record.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filename := path.Base(record.ObjectName)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "inline; filename*=UTF-8''"+url.PathEscape(filename))
	if record.ETag != "" {
		w.Header().Set("ETag", record.ETag)
	}
	io.Copy(w, object)
}

// Delete removes one media record and its object.
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	mediaID, err := strconv.ParseInt(mux.Vars(r)["media_id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid media id")
		return
	}

	if err := h.media.Delete(r.Context(), projectID, mediaID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// projectScope authenticates the caller and confirms the project in the
// path belongs to them.
func (h *MediaHandler) projectScope(w http.ResponseWriter, r *http.Request) (*models.User, int64, bool) {
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

	if _, err := h.projects.Get(r.Context(), user.ID, projectID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return nil, 0, false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, 0, false
	}
	return user, projectID, true
}
