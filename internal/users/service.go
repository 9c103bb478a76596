// Package users exposes account listing and deletion.
package users

import (
	"context"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/inpetum/identity/internal/accounts"
	"github.com/inpetum/identity/internal/platform/db"
	"github.com/inpetum/identity/internal/rbac"
	"github.com/inpetum/identity/internal/session"
)

// SessionInvalidator revokes all sessions for an account.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, accountID uuid.UUID) error
}

// Service handles account management logic.
type Service struct {
	logger   *slog.Logger
	pool     db.Pool
	repo     *accounts.Repository
	sessions SessionInvalidator
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, pool db.Pool, sessions SessionInvalidator) *Service {
	return &Service{logger: logger, pool: pool, repo: accounts.NewRepository(pool), sessions: sessions}
}

// ListAccounts returns all accounts with email and role joined in.
func (s *Service) ListAccounts(ctx context.Context) ([]accounts.Summary, error) {
	return s.repo.ListAccounts(ctx)
}

// DeleteAccount removes the target account after the policy checks pass.
// Actor and target state are read inside the same transaction as the
// delete; any denial rolls everything back before a response is sent.
func (s *Service) DeleteAccount(ctx context.Context, actor session.Principal, targetID uuid.UUID) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		roles := rbac.NewService(tx)

		actorSubject, err := loadSubject(ctx, repo, roles, actor.AccountID)
		if err != nil {
			return err
		}
		targetSubject, err := loadSubject(ctx, repo, roles, targetID)
		if err != nil {
			return err
		}
		if err := rbac.AuthorizeDelete(actorSubject, targetSubject); err != nil {
			return err
		}
		return repo.DeleteAccount(ctx, targetID)
	})
	if err != nil {
		return err
	}
	// Dead accounts keep no live sessions. The delete has committed, so a
	// revocation failure is logged rather than surfaced; the orphaned
	// session expires on its own TTL.
	if err := s.sessions.Invalidate(ctx, targetID); err != nil {
		s.logger.Warn("invalidate sessions after delete",
			slog.String("account_id", targetID.String()), slog.Any("error", err))
	}
	return nil
}

func loadSubject(ctx context.Context, repo *accounts.Repository, roles *rbac.Service, accountID uuid.UUID) (rbac.Subject, error) {
	acct, err := repo.GetAccount(ctx, accountID)
	if err != nil {
		return rbac.Subject{}, err
	}
	role, err := roles.GetRole(ctx, acct.RoleID)
	if err != nil {
		return rbac.Subject{}, err
	}
	perms, err := roles.EffectivePermissions(ctx, acct.RoleID)
	if err != nil {
		return rbac.Subject{}, err
	}
	return rbac.Subject{AccountID: accountID, RoleName: role.Name, Permissions: perms}, nil
}
