package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rmgwatch/apiserver/internal/services"
)

// AccountHandler covers self-service account management: profile,
// password and MFA lifecycle.
type AccountHandler struct {
	auth *services.AuthService
}

func NewAccountHandler(auth *services.AuthService) *AccountHandler {
	return &AccountHandler{auth: auth}
}

// AccountRouter registers account routes. All routes require auth.
func AccountRouter(r chi.Router, auth *services.AuthService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAccountHandler(auth)

	r.Use(authMiddleware)
	r.Put("/profile", handler.UpdateProfile)
	r.Post("/password", handler.ChangePassword)
	r.Post("/mfa/setup", handler.SetupMFA)
	r.Post("/mfa/enable", handler.EnableMFA)
	r.Post("/mfa/disable", handler.DisableMFA)
}

type UpdateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.auth.UpdateProfile(r.Context(), user.ID, req.Username, req.Email, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := h.auth.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetupMFA generates a pending TOTP secret. The secret and otpauth URL
// are returned exactly once, for the client to render as a QR code.
func (h *AccountHandler) SetupMFA(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	provisioning, err := h.auth.SetupMFA(r.Context(), user.ID, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, provisioning)
}

type EnableMFARequest struct {
	Code string `json:"code"`
}

func (h *AccountHandler) EnableMFA(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req EnableMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.auth.EnableMFA(r.Context(), user.ID, req.Code, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"mfa_enabled": true})
}

type DisableMFARequest struct {
	Password string `json:"password"`
}

func (h *AccountHandler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req DisableMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.auth.DisableMFA(r.Context(), user.ID, req.Password, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"mfa_enabled": false})
}
