package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/DENisProd/C0NSTRUCT0R/internal/auth"
	"github.com/DENisProd/C0NSTRUCT0R/internal/models"
)

// AuthHandler exposes registration, login, password change and the
// optional TOTP second factor.
type AuthHandler struct {
	auth *auth.Service
	totp *auth.TOTP
}

func NewAuthHandler(authService *auth.Service, totp *auth.TOTP) *AuthHandler {
	return &AuthHandler{auth: authService, totp: totp}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type TOTPCodeRequest struct {
	Code string `json:"code"`
}

// Register creates an account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login checks credentials and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password, req.TOTPCode, auth.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(h.auth.RemainingLoginAttempts(r.Context(), req.Email)))
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
		case errors.Is(err, auth.ErrTooManyAttempts):
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeError(w, http.StatusTooManyRequests, "Too many login attempts")
		case errors.Is(err, auth.ErrTOTPCodeRequired), errors.Is(err, auth.ErrInvalidTOTPCode):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// ChangePassword rotates the authenticated user's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Password updated"})
}

// TOTPSetup starts authenticator enrollment for the current user.
func (h *AuthHandler) TOTPSetup(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	setup, err := h.totp.Initiate(r.Context(), user)
	if err != nil {
		if errors.Is(err, auth.ErrTOTPDisabled) {
			writeError(w, http.StatusNotFound, "TOTP disabled")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, setup)
}

// TOTPVerify confirms enrollment with a first code.
func (h *AuthHandler) TOTPVerify(w http.ResponseWriter, r *http.Request) {
	h.totpAction(w, r, h.totp.Verify, "TOTP enabled")
}

// TOTPDisable turns the second factor off.
func (h *AuthHandler) TOTPDisable(w http.ResponseWriter, r *http.Request) {
	h.totpAction(w, r, h.totp.Disable, "TOTP disabled")
}

func (h *AuthHandler) totpAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, user *models.User, code string) error, detail string) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req TOTPCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := action(r.Context(), user, req.Code); err != nil {
		switch {
		case errors.Is(err, auth.ErrTOTPDisabled),
			errors.Is(err, auth.ErrTOTPNotInitialized),
			errors.Is(err, auth.ErrTOTPNotEnabled),
			errors.Is(err, auth.ErrInvalidTOTPCode):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": detail})
}
