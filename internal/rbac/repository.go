package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/inpetum/identity/internal/platform/db"
	"github.com/inpetum/identity/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for roles,
// permissions and grants.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a repository over a pool or transaction.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// WithTx returns a repository bound to the given transaction so policy
// reads happen inside the same transaction as the mutation they guard.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{q: tx}
}

// FindRoleByName fetches a role by its unique name.
func (r *Repository) FindRoleByName(ctx context.Context, name string) (Role, error) {
	row := r.q.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM roles WHERE name = $1`, name)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %q: %w", name, httpx.ErrNotFound)
		}
		return Role{}, err
	}
	return role, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	row := r.q.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`, id)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role: %w", httpx.ErrNotFound)
		}
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// EffectivePermissions returns the deduplicated permission names granted
// to a role. The union is taken across all grant rows for the role,
// regardless of who created each grant.
func (r *Repository) EffectivePermissions(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

// UpsertRole inserts a role or refreshes its description, keyed by name.
func (r *Repository) UpsertRole(ctx context.Context, name, description string) (Role, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO roles (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, updated_at = now()
		RETURNING id, name, description, created_at, updated_at`,
		uuid.New(), name, description)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	return role, nil
}

// UpsertPermission inserts a permission or refreshes its description, keyed by name.
func (r *Repository) UpsertPermission(ctx context.Context, name, description string) (Permission, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO permissions (id, name, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		RETURNING id, name, description`,
		uuid.New(), name, description)
	var perm Permission
	if err := row.Scan(&perm.ID, &perm.Name, &perm.Description); err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// EnsureGrant records a grant row if it does not already exist.
func (r *Repository) EnsureGrant(ctx context.Context, roleID, permissionID, grantedBy uuid.UUID) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, granted_by, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (role_id, permission_id, granted_by) DO NOTHING`,
		roleID, permissionID, grantedBy)
	return err
}
