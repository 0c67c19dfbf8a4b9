package api

import (
	"errors"
	"net/http"

	"github.com/atriumhq/atrium/pkg/accounts"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/workspaces"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Expected domain outcomes and their transport form. Anything not listed is
// an unclassified storage failure and becomes an opaque 500.
var errorMappings = []errorMapping{
	{workspaces.ErrTenantNotFound, http.StatusNotFound, "tenant_not_found"},
	{workspaces.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{workspaces.ErrNotAMember, http.StatusNotFound, "not_a_member"},
	{accounts.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},

	{workspaces.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{workspaces.ErrInvalidName, http.StatusBadRequest, "invalid_name"},
	{accounts.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{accounts.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{accounts.ErrInvalidAction, http.StatusBadRequest, "invalid_action"},

	{workspaces.ErrAlreadyMember, http.StatusConflict, "already_member"},
	{workspaces.ErrDuplicateName, http.StatusConflict, "duplicate_name"},
	{workspaces.ErrLastOwner, http.StatusConflict, "last_owner"},
	{workspaces.ErrDefaultTenant, http.StatusConflict, "default_tenant"},
	{workspaces.ErrHasMultipleMembers, http.StatusConflict, "has_multiple_members"},
	{accounts.ErrDuplicateEmail, http.StatusConflict, "duplicate_email"},

	{workspaces.ErrNotCreator, http.StatusForbidden, "not_creator"},
	{accounts.ErrSelfAction, http.StatusForbidden, "self_action"},
	{accounts.ErrCrossPrivilege, http.StatusForbidden, "cross_privilege"},
}

// writeServiceError maps a domain error onto an HTTP response
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			httputil.WriteError(w, m.status, m.code, m.err.Error())
			return
		}
	}

	observability.FromContext(r.Context()).WithError(err).Error("unhandled service error")
	httputil.WriteInternalError(w)
}
