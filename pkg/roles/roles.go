// Package roles defines the closed system and workspace role sets and the
// pure capability predicates evaluated over them. It performs no I/O.
package roles

import (
	"errors"
	"fmt"
)

// SystemRole classifies an account's cross-tenant privilege level.
type SystemRole string

const (
	// RoleSystemAdmin has full cross-tenant administration rights.
	RoleSystemAdmin SystemRole = "system_admin"
	// RoleTenantManager can create tenants and manage only the ones it created.
	RoleTenantManager SystemRole = "tenant_manager"
	// RoleUser has no administrative capability.
	RoleUser SystemRole = "user"
)

// WorkspaceRole is the per-tenant role carried by a membership,
// independent of SystemRole.
type WorkspaceRole string

const (
	WorkspaceOwner           WorkspaceRole = "owner"
	WorkspaceAdmin           WorkspaceRole = "admin"
	WorkspaceEditor          WorkspaceRole = "editor"
	WorkspaceNormal          WorkspaceRole = "normal"
	WorkspaceDatasetOperator WorkspaceRole = "dataset_operator"
)

// ErrUnknownRole is returned when translating a legacy role name that is not
// in the fixed renaming table.
var ErrUnknownRole = errors.New("unknown role")

// IsValidSystemRole reports whether value is a member of the closed system
// role set. Empty and case-mismatched input is invalid.
func IsValidSystemRole(value string) bool {
	switch SystemRole(value) {
	case RoleSystemAdmin, RoleTenantManager, RoleUser:
		return true
	}
	return false
}

// IsValidWorkspaceRole reports whether value is a member of the closed
// workspace role set.
func IsValidWorkspaceRole(value string) bool {
	switch WorkspaceRole(value) {
	case WorkspaceOwner, WorkspaceAdmin, WorkspaceEditor, WorkspaceNormal, WorkspaceDatasetOperator:
		return true
	}
	return false
}

// Resolve maps a raw stored role value to a SystemRole. Unset or invalid
// values resolve to the base tier, never to a privileged tier.
func Resolve(raw string) SystemRole {
	if IsValidSystemRole(raw) {
		return SystemRole(raw)
	}
	return RoleUser
}

// CanAccessAllTenants reports whether the role sees every tenant regardless
// of creatorship or membership.
func (r SystemRole) CanAccessAllTenants() bool {
	return r == RoleSystemAdmin
}

// CanManageUsers reports whether the role may perform account-level
// administrative mutations.
func (r SystemRole) CanManageUsers() bool {
	return r == RoleSystemAdmin
}

// CanAssignMembers reports whether the role may add accounts to arbitrary
// tenants.
func (r SystemRole) CanAssignMembers() bool {
	return r == RoleSystemAdmin
}

// CanCreateTenant reports whether the role may create new tenants.
func (r SystemRole) CanCreateTenant() bool {
	return r == RoleSystemAdmin || r == RoleTenantManager
}

// CanDeleteTenant reports whether the role may delete a tenant. System
// admins may delete unconditionally; tenant managers only tenants they
// created.
func (r SystemRole) CanDeleteTenant(isCreator bool) bool {
	switch r {
	case RoleSystemAdmin:
		return true
	case RoleTenantManager:
		return isCreator
	}
	return false
}

// legacyNames is the permanent renaming table from historical role names to
// the current enumeration. It backs both the live resolve path and the
// one-time data migration so the two cannot drift.
var legacyNames = map[string]SystemRole{
	"super_admin":     RoleSystemAdmin,
	"workspace_admin": RoleTenantManager,
	"normal":          RoleUser,
}

// FromLegacy translates a historical role name to its current value.
// Names outside the fixed table fail with ErrUnknownRole, including the
// current names themselves.
func FromLegacy(name string) (SystemRole, error) {
	role, ok := legacyNames[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
	return role, nil
}

// LegacyNames returns the legacy-to-current renaming table. The result is a
// copy; callers may not mutate the canonical table.
func LegacyNames() map[string]SystemRole {
	out := make(map[string]SystemRole, len(legacyNames))
	for k, v := range legacyNames {
		out[k] = v
	}
	return out
}
