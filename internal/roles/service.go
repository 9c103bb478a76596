// Package roles exposes role listing and role assignment.
package roles

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/inpetum/identity/internal/accounts"
	"github.com/inpetum/identity/internal/platform/db"
	"github.com/inpetum/identity/internal/platform/httpx"
	"github.com/inpetum/identity/internal/rbac"
	"github.com/inpetum/identity/internal/session"
)

// SessionInvalidator revokes all sessions for an account.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, accountID uuid.UUID) error
}

// Service handles role assignment logic.
type Service struct {
	logger   *slog.Logger
	pool     db.Pool
	rbac     *rbac.Service
	sessions SessionInvalidator
}

// NewService builds a Service instance.
func NewService(logger *slog.Logger, pool db.Pool, sessions SessionInvalidator) *Service {
	return &Service{logger: logger, pool: pool, rbac: rbac.NewService(pool), sessions: sessions}
}

// ListRoles returns the seeded roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	return s.rbac.ListRoles(ctx)
}

// AssignRole moves the target account onto the named role. Role and
// permission state are read inside the same transaction that writes the
// new role, so concurrent assignments serialize and a failed check never
// leaves a partial write behind.
func (s *Service) AssignRole(ctx context.Context, actor session.Principal, targetID uuid.UUID, roleName string) (rbac.Role, error) {
	var assigned rbac.Role
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := accounts.NewRepository(tx)
		roles := rbac.NewService(tx)

		actorSubject, err := loadSubject(ctx, repo, roles, actor.AccountID)
		if err != nil {
			return err
		}
		targetSubject, err := loadSubject(ctx, repo, roles, targetID)
		if err != nil {
			return err
		}

		newRole, err := roles.FindRole(ctx, roleName)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				return fmt.Errorf("unknown role %q: %w", roleName, httpx.ErrNotFound)
			}
			return err
		}
		newRolePerms, err := roles.EffectivePermissions(ctx, newRole.ID)
		if err != nil {
			return err
		}

		if err := rbac.AuthorizeAssignRole(actorSubject, targetSubject, newRolePerms); err != nil {
			return err
		}
		if err := repo.UpdateAccountRole(ctx, targetID, newRole.ID); err != nil {
			return err
		}
		assigned = newRole
		return nil
	})
	if err != nil {
		return rbac.Role{}, err
	}
	// The target's live sessions still carry the old role snapshot. The
	// role change has committed, so a revocation failure is logged rather
	// than surfaced; the stale session expires on its own TTL.
	if err := s.sessions.Invalidate(ctx, targetID); err != nil {
		s.logger.Warn("invalidate sessions after role change",
			slog.String("account_id", targetID.String()), slog.Any("error", err))
	}
	return assigned, nil
}

// RemoveRole resets the target account to the default user role.
func (s *Service) RemoveRole(ctx context.Context, actor session.Principal, targetID uuid.UUID) (rbac.Role, error) {
	return s.AssignRole(ctx, actor, targetID, rbac.RoleUser)
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
