package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/inpetum/identity/internal/accounts"
	"github.com/inpetum/identity/internal/platform/db"
	"github.com/inpetum/identity/internal/platform/httpx"
	"github.com/inpetum/identity/internal/rbac"
	"github.com/inpetum/identity/internal/session"
)

// Repository defines the persistence operations the login path needs.
type Repository interface {
	FindCredentialByEmail(ctx context.Context, email string) (accounts.Credential, accounts.Account, error)
	TouchLastLogin(ctx context.Context, accountID uuid.UUID, at time.Time) error
}

// RoleSource resolves roles for authenticated accounts.
type RoleSource interface {
	GetRole(ctx context.Context, id uuid.UUID) (rbac.Role, error)
}

// Service wraps authentication and registration business rules.
type Service struct {
	repo  Repository
	roles RoleSource
	pool  db.Pool
}

// NewService constructs a Service. The pool backs the transactional
// registration path; the interfaces back the login path.
func NewService(repo Repository, roles RoleSource, pool db.Pool) *Service {
	return &Service{repo: repo, roles: roles, pool: pool}
}

// Authenticate validates email/secret credentials. Every failure mode
// maps to ErrInvalidCredentials so the response never reveals which
// factor failed.
func (s *Service) Authenticate(ctx context.Context, email, secret string) (LoginResult, error) {
	cred, acct, err := s.repo.FindCredentialByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if acct.Status != accounts.StatusActive {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !accounts.CompareSecret(cred.PasswordHash, secret) {
		return LoginResult{}, ErrInvalidCredentials
	}
	role, err := s.roles.GetRole(ctx, acct.RoleID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: resolve role: %w", err)
	}
	return LoginResult{Account: acct, Credential: cred, Role: role}, nil
}

// TouchLogin records the login timestamp. Side effect only.
func (s *Service) TouchLogin(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.TouchLastLogin(ctx, accountID, time.Now())
}

// Register creates an account and its credential inside one transaction.
// The acting account's role and permissions are re-read inside the same
// transaction that performs the writes, and the policy rules run against
// that snapshot; any denial rolls the whole transaction back.
func (s *Service) Register(ctx context.Context, actor session.Principal, in RegisterInput) (RegisteredAccount, error) {
	hash, err := accounts.HashSecret(in.Secret)
	if err != nil {
		return RegisteredAccount{}, err
	}

	var created RegisteredAccount
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := accounts.NewRepository(tx)
		roles := rbac.NewService(tx)

		actorAcct, err := repo.GetAccount(ctx, actor.AccountID)
		if err != nil {
			return err
		}
		actorRole, err := roles.GetRole(ctx, actorAcct.RoleID)
		if err != nil {
			return err
		}
		actorPerms, err := roles.EffectivePermissions(ctx, actorAcct.RoleID)
		if err != nil {
			return err
		}

		newRole, err := roles.FindRole(ctx, in.Role)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				return fmt.Errorf("unknown role %q: %w", in.Role, httpx.ErrValidation)
			}
			return err
		}
		newRolePerms, err := roles.EffectivePermissions(ctx, newRole.ID)
		if err != nil {
			return err
		}

		actorSubject := rbac.Subject{AccountID: actor.AccountID, RoleName: actorRole.Name, Permissions: actorPerms}
		if err := rbac.AuthorizeCreate(actorSubject, newRole.Name, newRolePerms); err != nil {
			return err
		}

		acct := accounts.Account{
			ID:        uuid.New(),
			FirstName: in.FirstName,
			LastName:  in.LastName,
			RoleID:    newRole.ID,
			Status:    accounts.StatusActive,
		}
		if err := repo.CreateAccount(ctx, acct); err != nil {
			return err
		}
		if err := repo.CreateCredential(ctx, accounts.Credential{
			ID:           uuid.New(),
			Email:        normalizeEmail(in.Email),
			PasswordHash: hash,
			AccountID:    acct.ID,
			Verified:     true,
		}); err != nil {
			return err
		}

		created = RegisteredAccount{
			ID:        acct.ID,
			FirstName: acct.FirstName,
			LastName:  acct.LastName,
			Email:     normalizeEmail(in.Email),
			Role:      newRole.Name,
		}
		return nil
	})
	if err != nil {
		return RegisteredAccount{}, err
	}
	return created, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
