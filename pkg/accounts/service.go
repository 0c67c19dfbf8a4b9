package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/atriumhq/atrium/pkg/roles"
	"github.com/atriumhq/atrium/pkg/storage/postgres"
)

// PostgresService implements administrative account operations over
// PostgreSQL. Account row creation is delegated to the identity registrar.
type PostgresService struct {
	db        *sql.DB
	registrar Registrar
}

// NewPostgresService creates a new account admin service
func NewPostgresService(db *sql.DB, registrar Registrar) *PostgresService {
	return &PostgresService{
		db:        db,
		registrar: registrar,
	}
}

// List retrieves a page of accounts. Filters are conjunctive; an invalid
// role filter is ignored rather than rejected.
func (s *PostgresService) List(ctx context.Context, params ListParams) ([]*Account, int64, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	argN := 1

	if params.Search != "" {
		where = append(where, fmt.Sprintf(`(name ILIKE $%d ESCAPE '\' OR email ILIKE $%d ESCAPE '\')`, argN, argN))
		args = append(args, "%"+postgres.EscapeLike(params.Search)+"%")
		argN++
	}
	if roles.IsValidSystemRole(params.RoleFilter) {
		where = append(where, fmt.Sprintf("system_role = $%d", argN))
		args = append(args, params.RoleFilter)
		argN++
	}
	if params.StatusFilter != "" {
		if !IsValidStatus(params.StatusFilter) {
			return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, params.StatusFilter)
		}
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, params.StatusFilter)
		argN++
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM accounts WHERE %s`, whereClause)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	offset := (params.Page - 1) * params.Limit
	query := fmt.Sprintf(`
		SELECT id, name, email, status, system_role, created_at, last_login_at, last_active_at
		FROM accounts
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argN, argN+1)
	args = append(args, params.Limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*Account, error) {
	account := &Account{}
	var systemRole sql.NullString
	var lastLogin, lastActive sql.NullTime
	if err := row.Scan(
		&account.ID, &account.Name, &account.Email, &account.Status,
		&systemRole, &account.CreatedAt, &lastLogin, &lastActive,
	); err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	// The role column may be NULL on legacy rows; resolve once here, never
	// probe downstream.
	account.SystemRole = roles.Resolve(systemRole.String)
	if lastLogin.Valid {
		account.LastLoginAt = &lastLogin.Time
	}
	if lastActive.Valid {
		account.LastActiveAt = &lastActive.Time
	}
	return account, nil
}

// Get retrieves one account with its joined-tenant summaries
func (s *PostgresService) Get(ctx context.Context, accountID int64) (*AccountView, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, status, system_role, created_at, last_login_at, last_active_at
		FROM accounts
		WHERE id = $1
	`, accountID)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	view := &AccountView{Account: *account}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.tenant_id, t.name, m.role, m.current
		FROM tenant_members m
		JOIN tenants t ON t.id = m.tenant_id
		WHERE m.account_id = $1 AND t.status = 'normal'
		ORDER BY m.created_at ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account workspaces: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ws WorkspaceSummary
		if err := rows.Scan(&ws.TenantID, &ws.Name, &ws.Role, &ws.Current); err != nil {
			return nil, fmt.Errorf("failed to scan workspace summary: %w", err)
		}
		view.Workspaces = append(view.Workspaces, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workspaces: %w", err)
	}

	return view, nil
}

// Create registers a new account through the identity registrar without
// provisioning a personal tenant. An empty role defaults to the base tier.
func (s *PostgresService) Create(ctx context.Context, params CreateParams) (*AccountView, error) {
	role := roles.RoleUser
	if params.Role != "" {
		if !roles.IsValidSystemRole(params.Role) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, params.Role)
		}
		role = roles.SystemRole(params.Role)
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))

	var existing int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE LOWER(email) = $1`, email,
	).Scan(&existing)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	accountID, err := s.registrar.CreateAccount(ctx, RegistrationParams{
		Name:            params.Name,
		Email:           email,
		Password:        params.Password,
		SystemRole:      role,
		ProvisionTenant: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register account: %w", err)
	}

	return s.Get(ctx, accountID)
}

// lockAccount fetches and row-locks one account's role and status inside tx
func lockAccount(ctx context.Context, tx *sql.Tx, accountID int64) (roles.SystemRole, Status, error) {
	var systemRole sql.NullString
	var status Status
	err := tx.QueryRowContext(ctx,
		`SELECT system_role, status FROM accounts WHERE id = $1 FOR UPDATE`, accountID,
	).Scan(&systemRole, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrAccountNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to lock account: %w", err)
	}
	return roles.Resolve(systemRole.String), status, nil
}

// UpdateSystemRole changes an account's system role. Callers may not change
// their own role; a different system admin can only be changed through the
// out-of-band CLI.
func (s *PostgresService) UpdateSystemRole(ctx context.Context, accountID int64, newRole string, operatorID int64) error {
	if !roles.IsValidSystemRole(newRole) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, newRole)
	}
	if accountID == operatorID {
		return ErrSelfAction
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	currentRole, _, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return err
	}
	if currentRole == roles.RoleSystemAdmin {
		return ErrCrossPrivilege
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET system_role = $1 WHERE id = $2`, newRole, accountID)
	if err != nil {
		return fmt.Errorf("failed to update system role: %w", err)
	}

	return tx.Commit()
}

// UpdateStatus enables or bans an account with the same self and top-tier
// protections as UpdateSystemRole.
func (s *PostgresService) UpdateStatus(ctx context.Context, accountID int64, newStatus string, operatorID int64) error {
	if !IsValidStatus(newStatus) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}
	if accountID == operatorID {
		return ErrSelfAction
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	currentRole, _, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return err
	}
	if currentRole == roles.RoleSystemAdmin {
		return ErrCrossPrivilege
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET status = $1 WHERE id = $2`, newStatus, accountID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	return tx.Commit()
}

// Delete removes an account and all its memberships in one transaction.
func (s *PostgresService) Delete(ctx context.Context, accountID, operatorID int64) error {
	if accountID == operatorID {
		return ErrSelfAction
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	currentRole, _, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return err
	}
	if currentRole == roles.RoleSystemAdmin {
		return ErrCrossPrivilege
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM tenant_members WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	return tx.Commit()
}

// ResolveSystemRole loads an account's effective system role. Banned
// accounts resolve to the base tier.
func (s *PostgresService) ResolveSystemRole(ctx context.Context, accountID int64) (roles.SystemRole, error) {
	var systemRole sql.NullString
	var status Status
	err := s.db.QueryRowContext(ctx,
		`SELECT system_role, status FROM accounts WHERE id = $1`, accountID,
	).Scan(&systemRole, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get account: %w", err)
	}

	if status != StatusActive {
		return roles.RoleUser, nil
	}
	return roles.Resolve(systemRole.String), nil
}
