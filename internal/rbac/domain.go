package rbac

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a named bundle of permissions. Every account carries
// exactly one role.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability.
type Permission struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// Grant ties a permission to a role. GrantedBy records which account
// created the grant; it is audit metadata only and never partitions the
// effective permission set.
type Grant struct {
	RoleID       uuid.UUID
	PermissionID uuid.UUID
	GrantedBy    uuid.UUID
	CreatedAt    time.Time
}

// Seeded role names.
const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleUser       = "user"
)

// Seeded permission names.
const (
	PermRead              = "read"
	PermWrite             = "write"
	PermEdit              = "edit"
	PermDelete            = "delete"
	PermManageRoles       = "manage_roles"
	PermManagePermissions = "manage_permissions"
	PermCreateUser        = "create_user"
	PermDeleteUser        = "delete_user"
	PermSuperAdmin        = "super_admin"
)

// SystemGrantedBy marks grants created by the seeder rather than an account.
var SystemGrantedBy = uuid.Nil
