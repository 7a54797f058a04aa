package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/DENisProd/C0NSTRUCT0R/internal/auth"
	"github.com/DENisProd/C0NSTRUCT0R/internal/media"
	"github.com/DENisProd/C0NSTRUCT0R/internal/users"
)

// maxAvatarUpload bounds avatar uploads to 5 MB before decoding.
const maxAvatarUpload = 5 << 20

// UsersHandler serves the authenticated user's profile.
type UsersHandler struct {
	users *users.Service
	media *media.Service
}

func NewUsersHandler(usersService *users.Service, mediaService *media.Service) *UsersHandler {
	return &UsersHandler{users: usersService, media: mediaService}
}

// Me returns the current profile.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	profile, err := h.users.Profile(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateMe edits nickname and avatar URL.
func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var input users.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.users.Update(r.Context(), user, input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UploadAvatar accepts a multipart image and installs it as the avatar.
func (h *UsersHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	file, _, err := readUpload(r, maxAvatarUpload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	avatarURL, err := h.media.UploadAvatar(r.Context(), user.ID, file)
	if err != nil {
		if errors.Is(err, media.ErrNotAnImage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.users.SetAvatar(r.Context(), user, avatarURL); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	profile, err := h.users.Profile(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// readUpload pulls the "file" part of a multipart form, enforcing an
// image content type and a size cap.
func readUpload(r *http.Request, limit int64) ([]byte, *multipartHeader, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, nil, errors.New("invalid multipart form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.New("file field is required")
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, nil, errors.New("only image uploads are allowed")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, errors.New("failed to read upload")
	}
	return data, &multipartHeader{Filename: header.Filename, ContentType: contentType}, nil
}

type multipartHeader struct {
	Filename    string
	ContentType string
}
