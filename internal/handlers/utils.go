package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rmgwatch/apiserver/internal/services"
	"github.com/rmgwatch/apiserver/internal/store"
	"github.com/rmgwatch/apiserver/types"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

type contextKey string

const (
	contextUserKey    contextKey = "user"
	contextSessionKey contextKey = "session"
)

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func withIdentity(ctx context.Context, user types.User, session types.Session) context.Context {
	ctx = context.WithValue(ctx, contextUserKey, user)
	return context.WithValue(ctx, contextSessionKey, session)
}

// userFromContext returns the authenticated account, or nil for
// anonymous requests.
func userFromContext(ctx context.Context) *types.User {
	if user, ok := ctx.Value(contextUserKey).(types.User); ok {
		return &user
	}
	return nil
}

func sessionFromContext(ctx context.Context) (types.Session, bool) {
	session, ok := ctx.Value(contextSessionKey).(types.Session)
	return session, ok
}

// requestMeta captures the request origin for audit events. RealIP
// middleware has already rewritten RemoteAddr from forwarding headers.
func requestMeta(r *http.Request) services.RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return services.RequestMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps domain errors onto HTTP statuses. Unexpected
// errors get a generic 500 so internals never leak to clients.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidMFACode):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrPermissionDenied),
		errors.Is(err, services.ErrSelfDeletion):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrDuplicateUsername),
		errors.Is(err, services.ErrDuplicateEmail),
		errors.Is(err, services.ErrMFAAlreadyEnabled),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidPassword),
		errors.Is(err, services.ErrPasswordMismatch),
		errors.Is(err, services.ErrPasswordTooShort),
		errors.Is(err, services.ErrMissingVerification),
		errors.Is(err, services.ErrMFANotSetUp),
		errors.Is(err, services.ErrMissingFields),
		errors.Is(err, services.ErrInvalidReviewStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
