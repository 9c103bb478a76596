package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inpetum/identity/internal/accounts"
	"github.com/inpetum/identity/internal/auth"
	"github.com/inpetum/identity/internal/platform/httpx"
	"github.com/inpetum/identity/internal/rbac"
	"github.com/inpetum/identity/internal/session"
	_ "github.com/inpetum/identity/testing"
)

type stubRepo struct {
	account    accounts.Account
	credential accounts.Credential
	role       rbac.Role
	touched    int
}

func (s *stubRepo) FindCredentialByEmail(ctx context.Context, email string) (accounts.Credential, accounts.Account, error) {
	if email != s.credential.Email {
		return accounts.Credential{}, accounts.Account{}, httpx.ErrNotFound
	}
	return s.credential, s.account, nil
}

func (s *stubRepo) TouchLastLogin(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	s.touched++
	return nil
}

func (s *stubRepo) GetRole(ctx context.Context, id uuid.UUID) (rbac.Role, error) {
	return s.role, nil
}

func newTestRouter(t *testing.T, repo *stubRepo) (http.Handler, *session.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	manager := session.NewManager(client, "test-secret", time.Hour)

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	service := auth.NewService(repo, repo, nil)
	handler := auth.NewHandler(logger, service, manager, nil, nil)

	r := chi.NewRouter()
	r.Group(func(g chi.Router) {
		handler.MountPublicRoutes(g)
	})
	r.Group(func(g chi.Router) {
		g.Use(session.Middleware(manager, nil))
		handler.MountProtectedRoutes(g)
	})
	return r, manager
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func newStubRepo(t *testing.T, status accounts.Status) *stubRepo {
	t.Helper()
	hash, err := accounts.HashSecret("correct1pass")
	require.NoError(t, err)
	accountID := uuid.New()
	roleID := uuid.New()
	return &stubRepo{
		account: accounts.Account{
			ID:        accountID,
			FirstName: "Ada",
			LastName:  "Lovelace",
			RoleID:    roleID,
			Status:    status,
		},
		credential: accounts.Credential{
			ID:           uuid.New(),
			Email:        "ada@test.local",
			PasswordHash: hash,
			AccountID:    accountID,
		},
		role: rbac.Role{ID: roleID, Name: rbac.RoleAdmin},
	}
}

func postJSON(t *testing.T, handler http.Handler, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestLoginSuccess(t *testing.T) {
	repo := newStubRepo(t, accounts.StatusActive)
	router, manager := newTestRouter(t, repo)

	rr := postJSON(t, router, "/login", `{"email":"ada@test.local","secret":"correct1pass"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		SessionID string `json:"sessionId"`
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expiresAt"`
		Account   struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"account"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.SessionID, "session_"))
	assert.Greater(t, resp.ExpiresAt, time.Now().Unix())
	assert.Equal(t, repo.account.ID.String(), resp.Account.ID)
	assert.Equal(t, "ada@test.local", resp.Account.Email)
	assert.Equal(t, rbac.RoleAdmin, resp.Account.Role)
	assert.Equal(t, 1, repo.touched)

	principal, err := manager.Validate(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, repo.account.ID, principal.AccountID)
	assert.Equal(t, resp.SessionID, principal.SessionID)
}

// Unknown emails, wrong secrets and inactive accounts must be
// indistinguishable from the outside.
func TestLoginFailuresShareOneResponse(t *testing.T) {
	activeRepo := newStubRepo(t, accounts.StatusActive)
	activeRouter, _ := newTestRouter(t, activeRepo)

	suspendedRepo := newStubRepo(t, accounts.StatusSuspended)
	suspendedRouter, _ := newTestRouter(t, suspendedRepo)

	unknown := postJSON(t, activeRouter, "/login", `{"email":"ghost@test.local","secret":"correct1pass"}`, "")
	wrongSecret := postJSON(t, activeRouter, "/login", `{"email":"ada@test.local","secret":"wrongpass1"}`, "")
	suspended := postJSON(t, suspendedRouter, "/login", `{"email":"ada@test.local","secret":"correct1pass"}`, "")

	for _, rr := range []*httptest.ResponseRecorder{unknown, wrongSecret, suspended} {
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	assert.Equal(t, unknown.Body.String(), wrongSecret.Body.String())
	assert.Equal(t, unknown.Body.String(), suspended.Body.String())
	assert.Zero(t, activeRepo.touched)
}

func TestLoginValidation(t *testing.T) {
	router, _ := newTestRouter(t, newStubRepo(t, accounts.StatusActive))

	rr := postJSON(t, router, "/login", `{"email":"not-an-email","secret":"x"}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, router, "/login", `{broken`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(t, router, "/login", `{"email":"ada@test.local","secret":"x","extra":true}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	repo := newStubRepo(t, accounts.StatusActive)
	router, manager := newTestRouter(t, repo)

	login := postJSON(t, router, "/login", `{"email":"ada@test.local","secret":"correct1pass"}`, "")
	require.Equal(t, http.StatusOK, login.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &resp))

	logout := postJSON(t, router, "/logout", ``, resp.Token)
	assert.Equal(t, http.StatusOK, logout.Code)

	_, err := manager.Validate(context.Background(), resp.Token)
	assert.ErrorIs(t, err, session.ErrRevoked)

	again := postJSON(t, router, "/logout", ``, resp.Token)
	assert.Equal(t, http.StatusUnauthorized, again.Code)
}

func TestLogoutWithoutTokenIsRejected(t *testing.T) {
	router, _ := newTestRouter(t, newStubRepo(t, accounts.StatusActive))
	rr := postJSON(t, router, "/logout", ``, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
