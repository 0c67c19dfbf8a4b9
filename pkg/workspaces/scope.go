package workspaces

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/atriumhq/atrium/pkg/roles"
)

// VisibleTenants returns the tenants an administrative caller may act on:
// system admins see every normal tenant, tenant managers only the tenants
// they created, everyone else none. Membership alone grants no visibility
// here; base-tier accounts use ordinary joined-tenant listing instead.
func (s *PostgresService) VisibleTenants(ctx context.Context, accountID int64, role roles.SystemRole) ([]*Tenant, error) {
	var query string
	var args []interface{}

	switch {
	case role.CanAccessAllTenants():
		query = `
			SELECT id, name, status, created_by, created_at
			FROM tenants
			WHERE status = 'normal'
			ORDER BY created_at ASC, id ASC
		`
	case role == roles.RoleTenantManager:
		query = `
			SELECT id, name, status, created_by, created_at
			FROM tenants
			WHERE status = 'normal' AND created_by = $1
			ORDER BY created_at ASC, id ASC
		`
		args = append(args, accountID)
	default:
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		tenant := &Tenant{}
		var createdBy sql.NullInt64
		if err := rows.Scan(
			&tenant.ID, &tenant.Name, &tenant.Status, &createdBy, &tenant.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		if createdBy.Valid {
			tenant.CreatedBy = &createdBy.Int64
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}

	return tenants, nil
}

// VisibleTenantsWithRole lists the tenants an account can see from its own
// perspective. System admins see every normal tenant paired with their own
// membership role, nil where they have not joined, so they can distinguish
// tenants they belong to from tenants they merely administer. Everyone else
// sees exactly the tenants they have joined, with their role in each.
func (s *PostgresService) VisibleTenantsWithRole(ctx context.Context, accountID int64, role roles.SystemRole) ([]*TenantWithRole, error) {
	if !role.CanAccessAllTenants() {
		return s.joinedTenantsWithRole(ctx, accountID)
	}

	tenants, err := s.VisibleTenants(ctx, accountID, role)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, role FROM tenant_members WHERE account_id = $1`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	memberRoles := make(map[int64]roles.WorkspaceRole)
	for rows.Next() {
		var tenantID int64
		var memberRole roles.WorkspaceRole
		if err := rows.Scan(&tenantID, &memberRole); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberRoles[tenantID] = memberRole
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	result := make([]*TenantWithRole, 0, len(tenants))
	for _, tenant := range tenants {
		entry := &TenantWithRole{Tenant: tenant}
		if memberRole, ok := memberRoles[tenant.ID]; ok {
			r := memberRole
			entry.Role = &r
		}
		result = append(result, entry)
	}

	return result, nil
}

func (s *PostgresService) joinedTenantsWithRole(ctx context.Context, accountID int64) ([]*TenantWithRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.status, t.created_by, t.created_at, m.role
		FROM tenants t
		JOIN tenant_members m ON m.tenant_id = t.id
		WHERE m.account_id = $1 AND t.status = 'normal'
		ORDER BY t.created_at ASC, t.id ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list joined tenants: %w", err)
	}
	defer rows.Close()

	var result []*TenantWithRole
	for rows.Next() {
		tenant := &Tenant{}
		var createdBy sql.NullInt64
		var memberRole roles.WorkspaceRole
		if err := rows.Scan(
			&tenant.ID, &tenant.Name, &tenant.Status, &createdBy,
			&tenant.CreatedAt, &memberRole,
		); err != nil {
			return nil, fmt.Errorf("failed to scan joined tenant: %w", err)
		}
		if createdBy.Valid {
			tenant.CreatedBy = &createdBy.Int64
		}
		r := memberRole
		result = append(result, &TenantWithRole{Tenant: tenant, Role: &r})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate joined tenants: %w", err)
	}

	return result, nil
}
