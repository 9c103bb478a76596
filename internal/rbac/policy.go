package rbac

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/inpetum/identity/internal/platform/httpx"
)

// Subject is a snapshot of an account's role and effective permissions,
// read inside the same transaction as the mutation it guards.
type Subject struct {
	AccountID   uuid.UUID
	RoleName    string
	Permissions []string
}

// HasPermission reports set membership on the subject's permissions.
func (s Subject) HasPermission(name string) bool {
	return HasPermission(s.Permissions, name)
}

// IsSuperAdmin reports whether the subject's role carries super_admin.
func (s Subject) IsSuperAdmin() bool {
	return s.HasPermission(PermSuperAdmin)
}

// roleRank orders the seeded roles for creation and deletion limits.
// Unknown roles rank below user.
func roleRank(name string) int {
	switch name {
	case RoleSuperadmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleManager:
		return 1
	case RoleUser:
		return 0
	default:
		return -1
	}
}

func deny(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, httpx.ErrForbidden)...)
}

// AuthorizeDelete decides whether actor may delete target. Checks run in
// order and short-circuit on the first failure:
// self-deletion, super_admin immunity, role-scoped deletion limits, and
// the delete_user permission.
func AuthorizeDelete(actor, target Subject) error {
	if actor.AccountID == target.AccountID {
		return deny("accounts may not delete themselves")
	}
	if HasPermission(target.Permissions, PermSuperAdmin) && !actor.IsSuperAdmin() {
		return deny("only superadmins may delete superadmin accounts")
	}
	switch actor.RoleName {
	case RoleSuperadmin:
		// May delete anyone, self-deletion aside.
	case RoleAdmin:
		if roleRank(target.RoleName) >= roleRank(RoleAdmin) {
			return deny("admins may not delete %s accounts", target.RoleName)
		}
	case RoleManager:
		if target.RoleName != RoleUser {
			return deny("managers may only delete user accounts")
		}
	default:
		return deny("role %s may not delete accounts", actor.RoleName)
	}
	if !actor.HasPermission(PermDeleteUser) {
		return denyMissingPermission(PermDeleteUser)
	}
	return nil
}

// AuthorizeCreate decides whether actor may create an account with the
// given role. newRolePerms is the effective permission set of that role.
func AuthorizeCreate(actor Subject, newRoleName string, newRolePerms []string) error {
	if HasPermission(newRolePerms, PermSuperAdmin) && !actor.IsSuperAdmin() {
		return deny("only superadmins may assign roles carrying super_admin")
	}
	switch actor.RoleName {
	case RoleSuperadmin:
		// May create any role.
	case RoleAdmin:
		if roleRank(newRoleName) >= roleRank(RoleAdmin) {
			return deny("admins may not create %s accounts", newRoleName)
		}
	case RoleManager:
		if newRoleName != RoleUser {
			return deny("managers may only create user accounts")
		}
	}
	if !actor.HasPermission(PermCreateUser) {
		return denyMissingPermission(PermCreateUser)
	}
	return nil
}

// AuthorizeAssignRole decides whether actor may move target onto the
// given role. newRolePerms is the effective permission set of that role.
func AuthorizeAssignRole(actor, target Subject, newRolePerms []string) error {
	if HasPermission(target.Permissions, PermSuperAdmin) && !actor.IsSuperAdmin() {
		return deny("only superadmins may change the role of superadmin accounts")
	}
	if HasPermission(newRolePerms, PermSuperAdmin) && !actor.IsSuperAdmin() {
		return deny("only superadmins may assign roles carrying super_admin")
	}
	if !actor.IsSuperAdmin() {
		return denyMissingPermission(PermSuperAdmin)
	}
	return nil
}

// RequirePermission is the generic endpoint permission check. The denial
// names the missing permission for diagnostics.
func RequirePermission(actor Subject, perm string) error {
	if !actor.HasPermission(perm) {
		return denyMissingPermission(perm)
	}
	return nil
}

func denyMissingPermission(perm string) error {
	return deny("missing required permission %s", perm)
}
