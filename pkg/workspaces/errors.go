package workspaces

import "errors"

// Expected, recoverable outcomes. Callers distinguish them with errors.Is;
// anything else is an unclassified storage failure.
var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAlreadyMember      = errors.New("account is already a member of this tenant")
	ErrNotAMember         = errors.New("account is not a member of this tenant")
	ErrLastOwner          = errors.New("cannot remove the last owner of a workspace")
	ErrInvalidRole        = errors.New("invalid workspace role")
	ErrInvalidName        = errors.New("tenant name must be 1-100 characters")
	ErrDuplicateName      = errors.New("a tenant with this name already exists")
	ErrDefaultTenant      = errors.New("the default tenant cannot be deleted")
	ErrHasMultipleMembers = errors.New("tenant still has multiple members")
	ErrNotCreator         = errors.New("caller did not create this tenant")
)
