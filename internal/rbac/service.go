package rbac

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/inpetum/identity/internal/platform/db"
)

// Service orchestrates role and permission queries.
type Service struct {
	repo *Repository
}

// NewService constructs a Service backed by the provided pool or transaction.
func NewService(q db.Querier) *Service {
	return &Service{repo: NewRepository(q)}
}

// WithTx returns a Service whose reads run inside the given transaction.
func (s *Service) WithTx(tx pgx.Tx) *Service {
	return &Service{repo: s.repo.WithTx(tx)}
}

// FindRole fetches a role by its unique name.
func (s *Service) FindRole(ctx context.Context, name string) (Role, error) {
	return s.repo.FindRoleByName(ctx, strings.TrimSpace(strings.ToLower(name)))
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// EffectivePermissions returns the deduplicated permission names for a role.
func (s *Service) EffectivePermissions(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	return s.repo.EffectivePermissions(ctx, roleID)
}

// RoleHasPermission reports whether the role's effective permission set
// contains the given permission name.
func (s *Service) RoleHasPermission(ctx context.Context, roleID uuid.UUID, perm string) (bool, error) {
	perms, err := s.repo.EffectivePermissions(ctx, roleID)
	if err != nil {
		return false, err
	}
	return HasPermission(perms, perm), nil
}

// HasPermission is a pure set-membership check over permission names.
func HasPermission(granted []string, required string) bool {
	for _, p := range granted {
		if p == required {
			return true
		}
	}
	return false
}
