// Package accounts implements account-level administrative operations:
// listing, role and status changes, deletion, and their batched variants.
package accounts

import (
	"context"
	"time"

	"github.com/atriumhq/atrium/pkg/roles"
)

// Status is an account's lifecycle state
type Status string

const (
	StatusActive Status = "active"
	StatusBanned Status = "banned"
)

// IsValidStatus reports whether value is a member of the closed status set
func IsValidStatus(value string) bool {
	switch Status(value) {
	case StatusActive, StatusBanned:
		return true
	}
	return false
}

// Account is a user identity row
type Account struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Email        string           `json:"email"`
	Status       Status           `json:"status"`
	SystemRole   roles.SystemRole `json:"system_role"`
	CreatedAt    time.Time        `json:"created_at"`
	LastLoginAt  *time.Time       `json:"last_login_at,omitempty"`
	LastActiveAt *time.Time       `json:"last_active_at,omitempty"`
}

// WorkspaceSummary is one joined tenant shown on an account view
type WorkspaceSummary struct {
	TenantID int64               `json:"tenant_id"`
	Name     string              `json:"name"`
	Role     roles.WorkspaceRole `json:"role"`
	Current  bool                `json:"current"`
}

// AccountView is an account with its joined-tenant summaries
type AccountView struct {
	Account
	Workspaces []WorkspaceSummary `json:"workspaces"`
}

// ListParams shapes an account listing query. An invalid RoleFilter is
// silently ignored rather than rejected; listing is read-only.
type ListParams struct {
	Page         int
	Limit        int
	Search       string
	RoleFilter   string
	StatusFilter string
}

// CreateParams are the inputs for administrative account creation
type CreateParams struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// BatchAction is a bulk operation over a set of accounts
type BatchAction string

const (
	BatchEnable  BatchAction = "enable"
	BatchDisable BatchAction = "disable"
	BatchDelete  BatchAction = "delete"
)

// BatchItemError records why one account in a batch was rejected
type BatchItemError struct {
	AccountID int64  `json:"account_id"`
	Reason    string `json:"reason"`
}

// Per-item rejection reasons
const (
	ReasonNotFound    = "not_found"
	ReasonOperator    = "operator_account"
	ReasonSystemAdmin = "system_admin_protected"
)

// BatchResult summarizes a batch call
type BatchResult struct {
	Processed  int64            `json:"processed"`
	Failed     int64            `json:"failed"`
	ItemErrors []BatchItemError `json:"item_errors"`
}

// RegistrationParams are the inputs handed to the identity collaborator
type RegistrationParams struct {
	Name       string
	Email      string
	Password   string
	SystemRole roles.SystemRole

	// ProvisionTenant controls whether the registrar also creates a
	// personal tenant for the account. Administrative creation passes false.
	ProvisionTenant bool
}

// Registrar is the identity/registration collaborator, the sole creator of
// account rows. Create delegates row construction to it.
type Registrar interface {
	CreateAccount(ctx context.Context, params RegistrationParams) (int64, error)
}
