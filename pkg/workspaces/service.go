package workspaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/roles"
	"github.com/atriumhq/atrium/pkg/storage/postgres"
)

// PostgresService implements workspace lifecycle and membership management
// over PostgreSQL.
type PostgresService struct {
	db          *sql.DB
	provisioner TenantProvisioner
}

// NewPostgresService creates a new workspace service. provisioner may be nil.
func NewPostgresService(db *sql.DB, provisioner TenantProvisioner) *PostgresService {
	return &PostgresService{
		db:          db,
		provisioner: provisioner,
	}
}

const uniqueViolation = "23505"

// CreateTenant creates a tenant and, when creatorID is non-nil, records the
// creator and joins it as owner.
func (s *PostgresService) CreateTenant(ctx context.Context, name string, creatorID *int64) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if len(name) < 1 || len(name) > 100 {
		return nil, ErrInvalidName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Duplicate pre-check among live tenants. The partial unique index on
	// (name) WHERE status='normal' backstops the race.
	var existing int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM tenants WHERE name = $1 AND status = 'normal'`, name,
	).Scan(&existing)
	if err == nil {
		return nil, ErrDuplicateName
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check tenant name: %w", err)
	}

	tenant := &Tenant{
		Name:      name,
		Status:    TenantNormal,
		CreatedBy: creatorID,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO tenants (name, status, created_by)
		VALUES ($1, 'normal', $2)
		RETURNING id, created_at
	`, name, creatorID).Scan(&tenant.ID, &tenant.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	if creatorID != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tenant_members (tenant_id, account_id, role, current)
			VALUES ($1, $2, $3, FALSE)
		`, tenant.ID, *creatorID, roles.WorkspaceOwner)
		if err != nil {
			return nil, fmt.Errorf("failed to add creator as owner: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// The tenant row is committed at this point. A provisioner failure must
	// not surface as a call failure or a retry would hit ErrDuplicateName on
	// the row that already exists.
	if s.provisioner != nil {
		if err := s.provisioner.ProvisionTenant(ctx, tenant.ID); err != nil {
			observability.FromContext(ctx).WithError(err).
				WithField("tenant_id", tenant.ID).
				Warn("Failed to provision tenant")
		}
	}

	return tenant, nil
}

// DeleteTenant archives a tenant. The default tenant (earliest created among
// normal tenants) is permanently protected; a tenant with more than one
// member must be reduced to at most one first. The sole remaining membership
// is removed as part of the deletion.
func (s *PostgresService) DeleteTenant(ctx context.Context, tenantID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the tenant row to serialize against concurrent membership
	// mutations on the same tenant.
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM tenants WHERE id = $1 FOR UPDATE`, tenantID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTenantNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock tenant: %w", err)
	}
	if status != string(TenantNormal) {
		return ErrTenantNotFound
	}

	var defaultID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM tenants
		WHERE status = 'normal'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`).Scan(&defaultID)
	if err != nil {
		return fmt.Errorf("failed to find default tenant: %w", err)
	}
	if defaultID == tenantID {
		return ErrDefaultTenant
	}

	var memberCount int64
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tenant_members WHERE tenant_id = $1`, tenantID,
	).Scan(&memberCount)
	if err != nil {
		return fmt.Errorf("failed to count members: %w", err)
	}
	if memberCount > 1 {
		return ErrHasMultipleMembers
	}

	if memberCount == 1 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM tenant_members WHERE tenant_id = $1`, tenantID)
		if err != nil {
			return fmt.Errorf("failed to remove remaining membership: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tenants SET status = 'archived' WHERE id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to archive tenant: %w", err)
	}

	return tx.Commit()
}

// IsCreator reports whether the account created the tenant. Requires an
// owner-role membership; for tenants recorded with a creator, the creator
// field must also match. Tenants predating creator tracking (NULL
// created_by) fall back to owner-membership-implies-creator.
func (s *PostgresService) IsCreator(ctx context.Context, tenantID, accountID int64) (bool, error) {
	var createdBy sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT t.created_by
		FROM tenants t
		JOIN tenant_members m ON m.tenant_id = t.id
		WHERE t.id = $1 AND m.account_id = $2 AND m.role = 'owner'
	`, tenantID, accountID).Scan(&createdBy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check tenant creator: %w", err)
	}

	if !createdBy.Valid {
		return true, nil
	}
	return createdBy.Int64 == accountID, nil
}

// GetTenant retrieves one tenant by id regardless of status
func (s *PostgresService) GetTenant(ctx context.Context, tenantID int64) (*Tenant, error) {
	tenant := &Tenant{}
	var createdBy sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, created_by, created_at
		FROM tenants
		WHERE id = $1
	`, tenantID).Scan(&tenant.ID, &tenant.Name, &tenant.Status, &createdBy, &tenant.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if createdBy.Valid {
		tenant.CreatedBy = &createdBy.Int64
	}
	return tenant, nil
}

// ListTenants lists normal-status tenants with member counts in one grouped
// query. params.CreatedBy narrows the listing for mid-tier callers.
func (s *PostgresService) ListTenants(ctx context.Context, params ListTenantsParams) ([]*Tenant, int64, error) {
	where := []string{"t.status = 'normal'"}
	args := []interface{}{}
	argN := 1

	if params.Search != "" {
		where = append(where, fmt.Sprintf(`t.name ILIKE $%d ESCAPE '\'`, argN))
		args = append(args, "%"+postgres.EscapeLike(params.Search)+"%")
		argN++
	}
	if params.CreatedBy != nil {
		where = append(where, fmt.Sprintf("t.created_by = $%d", argN))
		args = append(args, *params.CreatedBy)
		argN++
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tenants t WHERE %s`, whereClause)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	offset := (params.Page - 1) * params.Limit
	query := fmt.Sprintf(`
		SELECT t.id, t.name, t.status, t.created_by, t.created_at, COUNT(m.id)
		FROM tenants t
		LEFT JOIN tenant_members m ON m.tenant_id = t.id
		WHERE %s
		GROUP BY t.id
		ORDER BY t.created_at ASC, t.id ASC
		LIMIT $%d OFFSET $%d
	`, whereClause, argN, argN+1)
	args = append(args, params.Limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		tenant := &Tenant{}
		var createdBy sql.NullInt64
		if err := rows.Scan(
			&tenant.ID, &tenant.Name, &tenant.Status, &createdBy,
			&tenant.CreatedAt, &tenant.MemberCount,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan tenant: %w", err)
		}
		if createdBy.Valid {
			tenant.CreatedBy = &createdBy.Int64
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate tenants: %w", err)
	}

	return tenants, total, nil
}
