package api

import (
	"net/http"

	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/middleware"
	"github.com/atriumhq/atrium/pkg/roles"
	"github.com/atriumhq/atrium/pkg/workspaces"
)

func (s *Server) listTenants(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	page, limit := httputil.ParsePagination(r)
	params := workspaces.ListTenantsParams{
		Page:   page,
		Limit:  limit,
		Search: httputil.ParseQueryString(r, "search", ""),
	}
	// Mid-tier callers only see tenants they created.
	if !caller.Role.CanAccessAllTenants() {
		params.CreatedBy = &caller.ID
	}

	items, total, err := s.tenants.ListTenants(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WritePage(w, items, int(total), page, limit)
}

type createTenantRequest struct {
	Name string `json:"name"`
}

func (s *Server) createTenant(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req createTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tenant, err := s.tenants.CreateTenant(r.Context(), req.Name, &caller.ID)
	s.record("create_tenant", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, tenant)
}

func (s *Server) deleteTenant(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	isCreator, err := s.tenants.IsCreator(r.Context(), tenantID, caller.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !caller.Role.CanDeleteTenant(isCreator) {
		writeServiceError(w, r, workspaces.ErrNotCreator)
		return
	}

	err = s.tenants.DeleteTenant(r.Context(), tenantID)
	s.record("delete_tenant", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// requireTenantAccess enforces creator scoping for mid-tier callers on
// member mutation routes. Top-tier callers may touch any tenant.
func (s *Server) requireTenantAccess(w http.ResponseWriter, r *http.Request, caller *middleware.Caller, tenantID int64) bool {
	if caller.Role.CanAssignMembers() {
		return true
	}
	isCreator, err := s.tenants.IsCreator(r.Context(), tenantID, caller.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return false
	}
	if !isCreator {
		writeServiceError(w, r, workspaces.ErrNotCreator)
		return false
	}
	return true
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if !s.requireTenantAccess(w, r, caller, tenantID) {
		return
	}

	page, limit := httputil.ParsePagination(r)
	params := workspaces.ListMembersParams{
		Page:   page,
		Limit:  limit,
		Search: httputil.ParseQueryString(r, "search", ""),
	}

	items, total, err := s.tenants.ListMembers(r.Context(), tenantID, params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WritePage(w, items, int(total), page, limit)
}

type addMemberRequest struct {
	AccountID int64  `json:"account_id"`
	Role      string `json:"role"`
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if !s.requireTenantAccess(w, r, caller, tenantID) {
		return
	}
	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.tenants.AddMember(r.Context(), tenantID, req.AccountID, roles.WorkspaceRole(req.Role))
	s.record("add_member", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type updateMemberRequest struct {
	Role string `json:"role"`
}

func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "account_id")
	if !ok {
		return
	}
	if !s.requireTenantAccess(w, r, caller, tenantID) {
		return
	}
	var req updateMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.tenants.UpdateMemberRole(r.Context(), tenantID, accountID, roles.WorkspaceRole(req.Role))
	s.record("update_member", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	accountID, ok := httputil.ParsePathInt64OrError(w, r, "account_id")
	if !ok {
		return
	}
	if !s.requireTenantAccess(w, r, caller, tenantID) {
		return
	}

	err := s.tenants.RemoveMember(r.Context(), tenantID, accountID)
	s.record("remove_member", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) availableUsers(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if !s.requireTenantAccess(w, r, caller, tenantID) {
		return
	}

	search := httputil.ParseQueryString(r, "search", "")
	limit, err := httputil.ParseQueryInt(r, "limit", 20)
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	items, err := s.tenants.ListAvailable(r.Context(), tenantID, search, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, items)
}

func (s *Server) switchTenant(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	tenantID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	isMember, err := s.tenants.SwitchTenant(r.Context(), caller.ID, tenantID, caller.Role)
	s.record("switch_tenant", err)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"tenant_id": tenantID,
		"is_member": isMember,
	})
}

func (s *Server) myTenants(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}

	items, err := s.tenants.VisibleTenantsWithRole(r.Context(), caller.ID, caller.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, items)
}
