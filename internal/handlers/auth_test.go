package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rmgwatch/apiserver/internal/logging"
	"github.com/rmgwatch/apiserver/internal/services"
	"github.com/rmgwatch/apiserver/internal/store"
	"github.com/rmgwatch/apiserver/types"
)

type memUserRepo struct {
	mu     sync.Mutex
	users  map[int]types.User
	nextID int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[int]types.User{}, nextID: 1}
}

func (m *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return user, nil
}

func (m *memUserRepo) UpdateProfile(_ context.Context, id int, username, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.users[id]
	user.Username = username
	user.Email = email
	m.users[id] = user
	return nil
}

func (m *memUserRepo) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.users[id]
	user.PasswordHash = passwordHash
	m.users[id] = user
	return nil
}

func (m *memUserRepo) UpdateLastLogin(_ context.Context, id int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.users[id]
	user.LastLogin = &at
	m.users[id] = user
	return nil
}

func (m *memUserRepo) SetMFA(_ context.Context, id int, secret string, enabled, expectEnabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if user.MFAEnabled != expectEnabled {
		return store.ErrConflict
	}
	user.MFASecret = secret
	user.MFAEnabled = enabled
	m.users[id] = user
	return nil
}

func (m *memUserRepo) SetVerified(_ context.Context, id int, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.users[id]
	user.IsVerified = verified
	m.users[id] = user
	return nil
}

func (m *memUserRepo) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *memUserRepo) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	return nil, 0, nil
}

func (m *memUserRepo) Count(_ context.Context) (int, error)         { return len(m.users), nil }
func (m *memUserRepo) CountVerified(_ context.Context) (int, error) { return 0, nil }

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]types.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]types.Session{}}
}

func (m *memSessionRepo) Create(_ context.Context, session types.Session) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return session, nil
}

func (m *memSessionRepo) Get(_ context.Context, id string) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (m *memSessionRepo) Revoke(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if session.RevokedAt == nil {
		session.RevokedAt = &at
		m.sessions[id] = session
	}
	return nil
}

type nopSink struct{}

func (nopSink) Append(context.Context, types.AuditEvent) error { return nil }

func newAuthTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	recorder := services.NewAuditRecorder(nopSink{}, log)
	auth := services.NewAuthService(newMemUserRepo(), newMemSessionRepo(), recorder, "handler-test-secret")

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, auth)
	})
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func registerPayload(username string) map[string]string {
	return map[string]string{
		"username":          username,
		"email":             username + "@example.com",
		"password":          "password123",
		"confirm_password":  "password123",
		"verification_id":   "BGMEA-99",
		"verification_type": "bgmea",
	}
}

func TestRegisterEndpoint_NoTokenIssued(t *testing.T) {
	router := newAuthTestRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/auth/register", "", registerPayload("alice"))
	if resp.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var user types.User
	if err := json.Unmarshal(resp.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if user.Username != "alice" || user.IsVerified {
		t.Fatalf("unexpected account: %+v", user)
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("token")) {
		t.Fatal("registration must not issue a token")
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("password")) {
		t.Fatal("response must not leak password material")
	}

	// Same username again conflicts.
	resp = doJSON(t, router, http.MethodPost, "/auth/register", "", registerPayload("alice"))
	if resp.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", resp.Code)
	}
}

func TestLoginLogoutEndpoint(t *testing.T) {
	router := newAuthTestRouter(t)
	doJSON(t, router, http.MethodPost, "/auth/register", "", registerPayload("alice"))

	// Bad credentials.
	resp := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.Code)
	}

	resp = doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "password123",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var login LoginResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" || login.Status != string(services.LoginAuthenticated) {
		t.Fatalf("unexpected login response: %+v", login)
	}

	// Token works.
	resp = doJSON(t, router, http.MethodGet, "/auth/me", login.Token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("me: want 200, got %d", resp.Code)
	}

	// Logout revokes the session; the same token is now refused.
	resp = doJSON(t, router, http.MethodPost, "/auth/logout", login.Token, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("logout: want 204, got %d", resp.Code)
	}
	resp = doJSON(t, router, http.MethodGet, "/auth/me", login.Token, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: want 401, got %d", resp.Code)
	}
}

func TestMeEndpoint_RequiresToken(t *testing.T) {
	router := newAuthTestRouter(t)

	resp := doJSON(t, router, http.MethodGet, "/auth/me", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.Code)
	}

	resp = doJSON(t, router, http.MethodGet, "/auth/me", "garbage-token", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: want 401, got %d", resp.Code)
	}
}
