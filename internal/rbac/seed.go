package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inpetum/identity/internal/platform/db"
)

// seedPermissions is the fixed permission catalog.
var seedPermissions = []struct {
	name        string
	description string
}{
	{PermRead, "Read access"},
	{PermWrite, "Write access"},
	{PermEdit, "Edit access"},
	{PermDelete, "Delete access"},
	{PermManageRoles, "Manage role definitions"},
	{PermManagePermissions, "Manage permission assignments"},
	{PermCreateUser, "Create user accounts"},
	{PermDeleteUser, "Delete user accounts"},
	{PermSuperAdmin, "Marks a protected role immune to non-superadmin mutation"},
}

// seedRoles is the fixed role set with its default grant matrix.
var seedRoles = []struct {
	name        string
	description string
	grants      []string
}{
	{RoleSuperadmin, "Full control including protected-role management",
		[]string{PermRead, PermWrite, PermEdit, PermDelete, PermManageRoles, PermManagePermissions, PermCreateUser, PermDeleteUser, PermSuperAdmin}},
	{RoleAdmin, "Administers accounts below admin level",
		[]string{PermRead, PermWrite, PermEdit, PermDelete, PermManagePermissions, PermCreateUser, PermDeleteUser}},
	{RoleManager, "Manages user-level accounts",
		[]string{PermRead, PermWrite, PermCreateUser, PermDeleteUser}},
	{RoleUser, "Standard read-only account",
		[]string{PermRead}},
}

// Seed installs the fixed roles, permissions and default grants. It is
// idempotent: upserts are keyed by name, so re-running never duplicates
// rows or grants.
func Seed(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		repo := NewRepository(tx)

		perms := make(map[string]Permission, len(seedPermissions))
		for _, p := range seedPermissions {
			perm, err := repo.UpsertPermission(ctx, p.name, p.description)
			if err != nil {
				return fmt.Errorf("rbac: seed permission %s: %w", p.name, err)
			}
			perms[perm.Name] = perm
		}

		for _, r := range seedRoles {
			role, err := repo.UpsertRole(ctx, r.name, r.description)
			if err != nil {
				return fmt.Errorf("rbac: seed role %s: %w", r.name, err)
			}
			for _, grant := range r.grants {
				perm, ok := perms[grant]
				if !ok {
					return fmt.Errorf("rbac: seed role %s references unknown permission %s", r.name, grant)
				}
				if err := repo.EnsureGrant(ctx, role.ID, perm.ID, SystemGrantedBy); err != nil {
					return fmt.Errorf("rbac: seed grant %s/%s: %w", r.name, grant, err)
				}
			}
		}

		if logger != nil {
			logger.Info("rbac seed complete",
				slog.Int("roles", len(seedRoles)),
				slog.Int("permissions", len(seedPermissions)))
		}
		return nil
	})
}
