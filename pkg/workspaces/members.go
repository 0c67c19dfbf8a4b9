package workspaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atriumhq/atrium/pkg/roles"
	"github.com/atriumhq/atrium/pkg/storage/postgres"
)

// ListMembers retrieves a page of tenant members joined with account fields.
// Search matches name or email as a literal, case-insensitive substring.
func (s *PostgresService) ListMembers(ctx context.Context, tenantID int64, params ListMembersParams) ([]*Member, int64, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM tenants WHERE id = $1`, tenantID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrTenantNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get tenant: %w", err)
	}
	if status != string(TenantNormal) {
		return nil, 0, ErrTenantNotFound
	}

	where := `m.tenant_id = $1`
	args := []interface{}{tenantID}
	if params.Search != "" {
		where += ` AND (a.name ILIKE $2 ESCAPE '\' OR a.email ILIKE $2 ESCAPE '\')`
		args = append(args, "%"+postgres.EscapeLike(params.Search)+"%")
	}

	var total int64
	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM tenant_members m
		JOIN accounts a ON a.id = m.account_id
		WHERE %s
	`, where)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count members: %w", err)
	}

	offset := (params.Page - 1) * params.Limit
	query := fmt.Sprintf(`
		SELECT m.id, m.tenant_id, m.account_id, m.role, m.current, m.created_at,
		       a.name, a.email, a.status
		FROM tenant_members m
		JOIN accounts a ON a.id = m.account_id
		WHERE %s
		ORDER BY m.created_at ASC, m.id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, params.Limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		if err := rows.Scan(
			&member.ID, &member.TenantID, &member.AccountID, &member.Role,
			&member.Current, &member.JoinedAt,
			&member.Name, &member.Email, &member.Status,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, total, nil
}

// AddMember adds an account to a tenant with the given role, current=false.
// The insert runs under the same tenant row lock as the other membership
// mutations so it cannot land on a tenant being archived concurrently.
func (s *PostgresService) AddMember(ctx context.Context, tenantID, accountID int64, role roles.WorkspaceRole) error {
	if !roles.IsValidWorkspaceRole(string(role)) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var tenantStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM tenants WHERE id = $1 FOR UPDATE`, tenantID,
	).Scan(&tenantStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTenantNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock tenant: %w", err)
	}
	if tenantStatus != string(TenantNormal) {
		return ErrTenantNotFound
	}

	var accountExists int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE id = $1`, accountID,
	).Scan(&accountExists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO tenant_members (tenant_id, account_id, role, current)
		VALUES ($1, $2, $3, FALSE)
		ON CONFLICT (tenant_id, account_id) DO NOTHING
	`, tenantID, accountID, role)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyMember
	}

	return tx.Commit()
}

// UpdateMemberRole changes a member's workspace role. Demoting the last
// owner fails with ErrLastOwner; the owner count check and the update run in
// one transaction under a row lock on the tenant so concurrent demotions
// serialize.
func (s *PostgresService) UpdateMemberRole(ctx context.Context, tenantID, accountID int64, newRole roles.WorkspaceRole) error {
	if !roles.IsValidWorkspaceRole(string(newRole)) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, newRole)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var tenantStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM tenants WHERE id = $1 FOR UPDATE`, tenantID,
	).Scan(&tenantStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTenantNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock tenant: %w", err)
	}
	if tenantStatus != string(TenantNormal) {
		return ErrTenantNotFound
	}

	var currentRole roles.WorkspaceRole
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM tenant_members WHERE tenant_id = $1 AND account_id = $2`,
		tenantID, accountID,
	).Scan(&currentRole)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotAMember
	}
	if err != nil {
		return fmt.Errorf("failed to get membership: %w", err)
	}

	if currentRole == roles.WorkspaceOwner && newRole != roles.WorkspaceOwner {
		var ownerCount int64
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tenant_members WHERE tenant_id = $1 AND role = 'owner'`,
			tenantID,
		).Scan(&ownerCount)
		if err != nil {
			return fmt.Errorf("failed to count owners: %w", err)
		}
		if ownerCount <= 1 {
			return ErrLastOwner
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tenant_members SET role = $1 WHERE tenant_id = $2 AND account_id = $3`,
		newRole, tenantID, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	return tx.Commit()
}

// RemoveMember deletes a membership, refusing to remove the last owner.
// Same lock discipline as UpdateMemberRole.
func (s *PostgresService) RemoveMember(ctx context.Context, tenantID, accountID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var tenantStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM tenants WHERE id = $1 FOR UPDATE`, tenantID,
	).Scan(&tenantStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTenantNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock tenant: %w", err)
	}
	if tenantStatus != string(TenantNormal) {
		return ErrTenantNotFound
	}

	var currentRole roles.WorkspaceRole
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM tenant_members WHERE tenant_id = $1 AND account_id = $2`,
		tenantID, accountID,
	).Scan(&currentRole)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotAMember
	}
	if err != nil {
		return fmt.Errorf("failed to get membership: %w", err)
	}

	if currentRole == roles.WorkspaceOwner {
		var ownerCount int64
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tenant_members WHERE tenant_id = $1 AND role = 'owner'`,
			tenantID,
		).Scan(&ownerCount)
		if err != nil {
			return fmt.Errorf("failed to count owners: %w", err)
		}
		if ownerCount <= 1 {
			return ErrLastOwner
		}
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM tenant_members WHERE tenant_id = $1 AND account_id = $2`,
		tenantID, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return tx.Commit()
}

// ListAvailable lists active accounts that are not members of the tenant,
// for member-picker UIs. Search uses the same escaping as ListMembers.
func (s *PostgresService) ListAvailable(ctx context.Context, tenantID int64, search string, limit int) ([]*AvailableAccount, error) {
	var tenantStatus string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM tenants WHERE id = $1`, tenantID,
	).Scan(&tenantStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenantStatus != string(TenantNormal) {
		return nil, ErrTenantNotFound
	}

	query := `
		SELECT a.id, a.name, a.email
		FROM accounts a
		WHERE a.status = 'active'
		  AND NOT EXISTS (
		      SELECT 1 FROM tenant_members m
		      WHERE m.tenant_id = $1 AND m.account_id = a.id
		  )
	`
	args := []interface{}{tenantID}
	if search != "" {
		query += ` AND (a.name ILIKE $2 ESCAPE '\' OR a.email ILIKE $2 ESCAPE '\')`
		args = append(args, "%"+postgres.EscapeLike(search)+"%")
	}
	query += fmt.Sprintf(` ORDER BY a.created_at ASC, a.id ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list available accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*AvailableAccount
	for rows.Next() {
		account := &AvailableAccount{}
		if err := rows.Scan(&account.ID, &account.Name, &account.Email); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// SwitchTenant makes tenantID the account's current tenant. Members get
// their membership flagged current; a non-member caller that can access all
// tenants gets a read-only switch (current flags cleared, no join row
// created). Returns whether the caller is a member of the target tenant.
func (s *PostgresService) SwitchTenant(ctx context.Context, accountID, tenantID int64, role roles.SystemRole) (bool, error) {
	var tenantStatus string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM tenants WHERE id = $1`, tenantID,
	).Scan(&tenantStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrTenantNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenantStatus != string(TenantNormal) {
		return false, ErrTenantNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var memberID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM tenant_members WHERE tenant_id = $1 AND account_id = $2`,
		tenantID, accountID,
	).Scan(&memberID)
	isMember := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to get membership: %w", err)
	}

	if !isMember && !role.CanAccessAllTenants() {
		return false, ErrNotAMember
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tenant_members SET current = FALSE WHERE account_id = $1 AND current = TRUE`,
		accountID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to clear current tenant: %w", err)
	}

	if isMember {
		_, err = tx.ExecContext(ctx,
			`UPDATE tenant_members SET current = TRUE WHERE id = $1`, memberID)
		if err != nil {
			return false, fmt.Errorf("failed to set current tenant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return isMember, nil
}
