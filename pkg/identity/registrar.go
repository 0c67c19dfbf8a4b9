// Package identity implements the registration collaborator that owns
// account row creation.
package identity

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/atriumhq/atrium/pkg/accounts"
	"github.com/atriumhq/atrium/pkg/roles"
)

// PostgresRegistrar creates account rows, optionally provisioning a personal
// tenant for ordinary signups. Administrative creation suppresses the
// provisioning step.
type PostgresRegistrar struct {
	db *sql.DB
}

// NewPostgresRegistrar creates a new registrar
func NewPostgresRegistrar(db *sql.DB) *PostgresRegistrar {
	return &PostgresRegistrar{db: db}
}

// CreateAccount implements accounts.Registrar.
func (r *PostgresRegistrar) CreateAccount(ctx context.Context, params accounts.RegistrationParams) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var accountID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO accounts (name, email, password_hash, status, system_role)
		VALUES ($1, $2, $3, 'active', $4)
		RETURNING id
	`, params.Name, params.Email, string(hash), string(params.SystemRole)).Scan(&accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert account: %w", err)
	}

	if params.ProvisionTenant {
		var tenantID int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO tenants (name, status, created_by)
			VALUES ($1, 'normal', $2)
			RETURNING id
		`, fmt.Sprintf("%s's Workspace", params.Name), accountID).Scan(&tenantID)
		if err != nil {
			return 0, fmt.Errorf("failed to create personal tenant: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO tenant_members (tenant_id, account_id, role, current)
			VALUES ($1, $2, $3, TRUE)
		`, tenantID, accountID, roles.WorkspaceOwner)
		if err != nil {
			return 0, fmt.Errorf("failed to join personal tenant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return accountID, nil
}
