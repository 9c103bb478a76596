package auth_test

import (
	"context"
	"net/http"
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
	"github.com/inpetum/identity/internal/rbac"
	"github.com/inpetum/identity/internal/session"
	"github.com/inpetum/identity/internal/testutil"
)

type welcomeRecorder struct {
	sentTo []string
}

func (m *welcomeRecorder) SendWelcomeEmail(ctx context.Context, to, firstName, role string) error {
	m.sentTo = append(m.sentTo, to)
	return nil
}

func newRegisterRouter(t *testing.T, fake *testutil.FakeDB) (http.Handler, *session.Manager, *welcomeRecorder) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	manager := session.NewManager(client, "test-secret", time.Hour)

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	mailer := &welcomeRecorder{}
	service := auth.NewService(nil, nil, fake)
	handler := auth.NewHandler(logger, service, manager, mailer, nil)

	r := chi.NewRouter()
	r.Group(func(g chi.Router) {
		g.Use(session.Middleware(manager, nil))
		handler.MountProtectedRoutes(g)
	})
	return r, manager, mailer
}

// A manager asking for an admin account must get a denial and the
// transaction must never commit.
func TestRegisterManagerCannotCreateAdmin(t *testing.T) {
	fake := testutil.NewFakeDB()
	managerRole := fake.AddRole(rbac.RoleManager, rbac.PermCreateUser, rbac.PermRead)
	fake.AddRole(rbac.RoleAdmin, rbac.PermCreateUser, rbac.PermDeleteUser, rbac.PermRead)
	fake.AddRole(rbac.RoleUser, rbac.PermRead)
	actor := fake.AddAccount(managerRole.ID)

	router, manager, mailer := newRegisterRouter(t, fake)
	sess, err := manager.Issue(context.Background(), actor.ID, managerRole.ID, rbac.RoleManager)
	require.NoError(t, err)

	rr := postJSON(t, router, "/register",
		`{"firstName":"Eve","lastName":"Norman","email":"eve@test.local","secret":"longenough1","role":"admin"}`,
		sess.Token)

	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "managers may only create user accounts")
	assert.Equal(t, 1, fake.Begun)
	assert.Zero(t, fake.Committed)
	assert.Equal(t, 1, fake.RolledBack)
	assert.Len(t, fake.Accounts, 1) // the actor alone
	assert.Empty(t, fake.Credentials)
	assert.Empty(t, mailer.sentTo)
}

func TestRegisterCommitsAccountAndCredential(t *testing.T) {
	fake := testutil.NewFakeDB()
	superRole := fake.AddRole(rbac.RoleSuperadmin,
		rbac.PermSuperAdmin, rbac.PermCreateUser, rbac.PermDeleteUser, rbac.PermRead)
	adminRole := fake.AddRole(rbac.RoleAdmin, rbac.PermCreateUser, rbac.PermDeleteUser, rbac.PermRead)
	actor := fake.AddAccount(superRole.ID)

	router, manager, mailer := newRegisterRouter(t, fake)
	sess, err := manager.Issue(context.Background(), actor.ID, superRole.ID, rbac.RoleSuperadmin)
	require.NoError(t, err)

	rr := postJSON(t, router, "/register",
		`{"firstName":"Bea","lastName":"Opsen","email":"Bea@Test.Local","secret":"adminpass1","role":"admin"}`,
		sess.Token)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 1, fake.Committed)
	assert.Zero(t, fake.RolledBack)

	var created accounts.Account
	for id, acct := range fake.Accounts {
		if id != actor.ID {
			created = acct
		}
	}
	require.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, adminRole.ID, created.RoleID)
	assert.Equal(t, accounts.StatusActive, created.Status)

	cred := fake.Credentials[created.ID]
	assert.Equal(t, "bea@test.local", cred.Email)
	assert.True(t, cred.Verified)
	assert.True(t, accounts.CompareSecret(cred.PasswordHash, "adminpass1"))

	assert.Equal(t, []string{"bea@test.local"}, mailer.sentTo)
}
