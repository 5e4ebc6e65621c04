package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rmgwatch/apiserver/internal/services"
	"github.com/rmgwatch/apiserver/types"
)

// AuthHandler provides registration, login, logout and identity
// endpoints backed by the auth service.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, auth *services.AuthService) {
	handler := NewAuthHandler(auth)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Post("/logout", handler.Logout)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth rejects requests without a live authenticated session and
// injects the account and session into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, session, err := h.auth.Authenticate(r.Context(), tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user, session)))
	})
}

// OptionalAuth attaches the account when a valid token is presented but
// lets anonymous requests through. Used on endpoints that accept both,
// such as report submission.
func (h *AuthHandler) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, session, err := h.auth.Authenticate(r.Context(), tokenString)
		if err != nil {
			// A presented-but-invalid token is rejected rather than
			// silently downgraded to anonymous.
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user, session)))
	})
}

type RegisterRequest struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	ConfirmPassword  string `json:"confirm_password"`
	VerificationID   string `json:"verification_id"`
	VerificationType string `json:"verification_type"`
}

// Register creates an account. The response carries no token: the new
// account must log in, and stays unverified until an admin attests it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	user, err := h.auth.Register(r.Context(), services.RegisterInput{
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		ConfirmPassword:  req.ConfirmPassword,
		VerificationID:   req.VerificationID,
		VerificationType: req.VerificationType,
	}, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code"`
}

type LoginResponse struct {
	Status      string      `json:"status"`
	Token       string      `json:"token,omitempty"`
	MFARequired bool        `json:"mfa_required,omitempty"`
	User        *types.User `json:"user,omitempty"`
}

// Login validates credentials and returns a session token, or an MFA
// challenge when the account requires a code.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	result, err := h.auth.Login(r.Context(), services.LoginInput{
		Username: req.Username,
		Password: req.Password,
		MFACode:  req.MFACode,
	}, requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if result.Status == services.LoginMFARequired {
		writeJSON(w, http.StatusOK, LoginResponse{
			Status:      string(result.Status),
			MFARequired: true,
		})
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Status: string(result.Status),
		Token:  result.Token,
		User:   &result.User,
	})
}

// Logout revokes the current session. The token becomes unusable even
// though its signature stays valid until expiry.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	session, ok := sessionFromContext(r.Context())
	if user == nil || !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.auth.Logout(r.Context(), user.ID, session.ID, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
