// Package workspaces manages tenant containers and their memberships:
// lifecycle (create, archive), the membership relation with its owner
// invariant, and role-scoped tenant visibility.
package workspaces

import (
	"context"
	"time"

	"github.com/atriumhq/atrium/pkg/roles"
)

// TenantStatus is the lifecycle state of a tenant
type TenantStatus string

const (
	TenantNormal   TenantStatus = "normal"
	TenantArchived TenantStatus = "archived"
)

// Tenant is a workspace container accounts join via memberships
type Tenant struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Status    TenantStatus `json:"status"`
	CreatedBy *int64       `json:"created_by,omitempty"`
	CreatedAt time.Time    `json:"created_at"`

	// MemberCount is populated by listing queries
	MemberCount int64 `json:"member_count,omitempty"`
}

// Member is one account's membership in a tenant, joined with account fields
type Member struct {
	ID        int64               `json:"id"`
	TenantID  int64               `json:"tenant_id"`
	AccountID int64               `json:"account_id"`
	Role      roles.WorkspaceRole `json:"role"`
	Current   bool                `json:"current"`
	JoinedAt  time.Time           `json:"joined_at"`

	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// AvailableAccount is an active account not yet a member of a tenant
type AvailableAccount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TenantWithRole pairs a tenant with the caller's own membership role in it,
// nil when the caller has not joined the tenant.
type TenantWithRole struct {
	Tenant *Tenant              `json:"tenant"`
	Role   *roles.WorkspaceRole `json:"role,omitempty"`
}

// ListMembersParams shapes a member listing query
type ListMembersParams struct {
	Page   int
	Limit  int
	Search string
}

// ListTenantsParams shapes a tenant listing query
type ListTenantsParams struct {
	Page   int
	Limit  int
	Search string

	// CreatedBy restricts results to tenants created by one account
	CreatedBy *int64
}

// TenantProvisioner performs tenant-level bookkeeping at creation time
// (encryption material, plugin registration). Supplied by the host
// application; a nil provisioner is a no-op.
type TenantProvisioner interface {
	ProvisionTenant(ctx context.Context, tenantID int64) error
}
