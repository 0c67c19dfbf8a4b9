// Package rbac decides whether a caller's system role grants an
// administrative capability, and exposes that decision as HTTP middleware.
// Decisions are pure functions of the feature flag and the caller's role so
// they can be tested without any transport.
package rbac

import (
	"github.com/atriumhq/atrium/pkg/roles"
)

// Capability names an administrative action class guarded by the gate
type Capability string

const (
	// CapabilityManageUsers covers account CRUD, role and status changes
	CapabilityManageUsers Capability = "manage_users"
	// CapabilityManageTenants covers tenant creation, listing and deletion
	CapabilityManageTenants Capability = "manage_tenants"
	// CapabilityAssignMembers covers membership add, update and removal
	CapabilityAssignMembers Capability = "assign_members"
)

// Outcome is the result of an authorization decision
type Outcome int

const (
	// OutcomeAllow grants the request
	OutcomeAllow Outcome = iota
	// OutcomeFeatureDisabled hides the capability entirely. The surface
	// must be indistinguishable from a route that does not exist.
	OutcomeFeatureDisabled
	// OutcomeForbidden denies the request for this caller's role
	OutcomeForbidden
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeFeatureDisabled:
		return "feature_disabled"
	case OutcomeForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decide evaluates a capability request. When the multi-tenant admin feature
// is disabled no role grants anything, regardless of what is stored for the
// account.
func Decide(enabled bool, role roles.SystemRole, capability Capability) Outcome {
	if !enabled {
		return OutcomeFeatureDisabled
	}

	switch capability {
	case CapabilityManageUsers:
		if role.CanManageUsers() {
			return OutcomeAllow
		}
	case CapabilityManageTenants:
		if role.CanCreateTenant() {
			return OutcomeAllow
		}
	case CapabilityAssignMembers:
		if role.CanAssignMembers() {
			return OutcomeAllow
		}
	}
	return OutcomeForbidden
}
