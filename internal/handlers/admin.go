package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rmgwatch/apiserver/internal/services"
	"github.com/rmgwatch/apiserver/types"
)

// AdminHandler serves the admin panel endpoints. Authorization checks
// live in the admin service, not here.
type AdminHandler struct {
	admin     *services.AdminService
	countries *services.CountryService
}

func NewAdminHandler(admin *services.AdminService, countries *services.CountryService) *AdminHandler {
	return &AdminHandler{admin: admin, countries: countries}
}

// AdminRouter registers admin routes. All routes require auth; the
// service layer enforces the admin role.
func AdminRouter(r chi.Router, admin *services.AdminService, countries *services.CountryService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAdminHandler(admin, countries)

	r.Use(authMiddleware)
	r.Get("/stats", handler.Stats)
	r.Get("/users", handler.ListUsers)
	r.Post("/users/{userID}/verify", handler.VerifyUser)
	r.Delete("/users/{userID}", handler.DeleteUser)
	r.Get("/audit-logs", handler.AuditLogs)
	r.Post("/statistics/recompute", handler.RecomputeStatistics)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// UserListResponse is the paginated list response payload.
type UserListResponse struct {
	Items []types.User `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.admin.ListUsers(r.Context(), userFromContext(r.Context()), offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserListResponse{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *AdminHandler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.admin.VerifyUser(r.Context(), userFromContext(r.Context()), targetID, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_verified": true})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.admin.DeleteUser(r.Context(), userFromContext(r.Context()), targetID, requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuditLogResponse is the paginated audit trail payload.
type AuditLogResponse struct {
	Items []types.AuditEvent `json:"items"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.admin.AuditLogs(r.Context(), userFromContext(r.Context()), offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuditLogResponse{Items: items, Page: page, Limit: limit, Total: total})
}

// RecomputeStatistics refreshes every country's aggregates on demand.
// The event subscriber keeps them current; this is the manual override.
func (h *AdminHandler) RecomputeStatistics(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil || user.Role != types.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin access required")
		return
	}

	if err := h.countries.RecomputeAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to recompute statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recomputed"})
}

func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}
