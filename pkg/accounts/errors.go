package accounts

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrDuplicateEmail  = errors.New("an account with this email already exists")
	ErrInvalidRole     = errors.New("invalid system role")
	ErrInvalidStatus   = errors.New("invalid account status")
	ErrInvalidAction   = errors.New("invalid batch action")

	// ErrSelfAction covers a caller changing its own top-tier role or
	// disabling/deleting its own account through the ordinary API.
	ErrSelfAction = errors.New("operators cannot perform this action on their own account")

	// ErrCrossPrivilege covers demoting, disabling, or deleting a different
	// system admin; that path exists only in the out-of-band CLI.
	ErrCrossPrivilege = errors.New("system admin accounts can only be changed through the admin CLI")
)
