// Package api assembles the HTTP surface of the admin service: route
// registration, capability gating, and translation between transport
// shapes and the domain services.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atriumhq/atrium/pkg/accounts"
	"github.com/atriumhq/atrium/pkg/config"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/middleware"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/rbac"
	"github.com/atriumhq/atrium/pkg/roles"
	"github.com/atriumhq/atrium/pkg/workspaces"
)

// AccountService is the account-administration surface the handlers need
type AccountService interface {
	List(ctx context.Context, params accounts.ListParams) ([]*accounts.Account, int64, error)
	Get(ctx context.Context, accountID int64) (*accounts.AccountView, error)
	Create(ctx context.Context, params accounts.CreateParams) (*accounts.AccountView, error)
	UpdateSystemRole(ctx context.Context, accountID int64, newRole string, operatorID int64) error
	UpdateStatus(ctx context.Context, accountID int64, newStatus string, operatorID int64) error
	Delete(ctx context.Context, accountID, operatorID int64) error
	Batch(ctx context.Context, accountIDs []int64, action accounts.BatchAction, operatorID int64) (*accounts.BatchResult, error)
}

// TenantService is the workspace surface the handlers need
type TenantService interface {
	CreateTenant(ctx context.Context, name string, creatorID *int64) (*workspaces.Tenant, error)
	DeleteTenant(ctx context.Context, tenantID int64) error
	GetTenant(ctx context.Context, tenantID int64) (*workspaces.Tenant, error)
	ListTenants(ctx context.Context, params workspaces.ListTenantsParams) ([]*workspaces.Tenant, int64, error)
	IsCreator(ctx context.Context, tenantID, accountID int64) (bool, error)

	ListMembers(ctx context.Context, tenantID int64, params workspaces.ListMembersParams) ([]*workspaces.Member, int64, error)
	AddMember(ctx context.Context, tenantID, accountID int64, role roles.WorkspaceRole) error
	UpdateMemberRole(ctx context.Context, tenantID, accountID int64, newRole roles.WorkspaceRole) error
	RemoveMember(ctx context.Context, tenantID, accountID int64) error
	ListAvailable(ctx context.Context, tenantID int64, search string, limit int) ([]*workspaces.AvailableAccount, error)
	SwitchTenant(ctx context.Context, accountID, tenantID int64, role roles.SystemRole) (bool, error)

	VisibleTenantsWithRole(ctx context.Context, accountID int64, role roles.SystemRole) ([]*workspaces.TenantWithRole, error)
}

// Server routes admin API requests to the domain services
type Server struct {
	router   *mux.Router
	gate     *rbac.Gate
	accounts AccountService
	tenants  TenantService
	flags    config.FlagSource
	metrics  *observability.Metrics
}

// NewServer creates the API server and registers all routes. Metrics may
// be nil.
func NewServer(accountSvc AccountService, tenantSvc TenantService, flags config.FlagSource, metrics *observability.Metrics) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		gate:     rbac.NewGate(flags, metrics),
		accounts: accountSvc,
		tenants:  tenantSvc,
		flags:    flags,
		metrics:  metrics,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Account administration
	manageUsers := s.gate.Require(rbac.CapabilityManageUsers)
	api.Handle("/admin/users", manageUsers(http.HandlerFunc(s.listUsers))).Methods("GET")
	api.Handle("/admin/users", manageUsers(http.HandlerFunc(s.createUser))).Methods("POST")
	api.Handle("/admin/users/batch", manageUsers(http.HandlerFunc(s.batchUsers))).Methods("POST")
	api.Handle("/admin/users/{id}", manageUsers(http.HandlerFunc(s.getUser))).Methods("GET")
	api.Handle("/admin/users/{id}", manageUsers(http.HandlerFunc(s.deleteUser))).Methods("DELETE")
	api.Handle("/admin/users/{id}/role", manageUsers(http.HandlerFunc(s.updateUserRole))).Methods("PUT")
	api.Handle("/admin/users/{id}/status", manageUsers(http.HandlerFunc(s.updateUserStatus))).Methods("PUT")

	// Tenant administration. Mid-tier callers pass the gate but are scoped
	// to tenants they created inside the handlers.
	manageTenants := s.gate.Require(rbac.CapabilityManageTenants)
	api.Handle("/admin/tenants", manageTenants(http.HandlerFunc(s.listTenants))).Methods("GET")
	api.Handle("/admin/tenants", manageTenants(http.HandlerFunc(s.createTenant))).Methods("POST")
	api.Handle("/admin/tenants/{id}", manageTenants(http.HandlerFunc(s.deleteTenant))).Methods("DELETE")
	api.Handle("/admin/tenants/{id}/members", manageTenants(http.HandlerFunc(s.listMembers))).Methods("GET")
	api.Handle("/admin/tenants/{id}/members", manageTenants(http.HandlerFunc(s.addMember))).Methods("POST")
	api.Handle("/admin/tenants/{id}/members/{account_id}", manageTenants(http.HandlerFunc(s.updateMember))).Methods("PUT")
	api.Handle("/admin/tenants/{id}/members/{account_id}", manageTenants(http.HandlerFunc(s.removeMember))).Methods("DELETE")
	api.Handle("/admin/tenants/{id}/available-users", manageTenants(http.HandlerFunc(s.availableUsers))).Methods("GET")
	api.Handle("/admin/system-roles", manageUsers(http.HandlerFunc(s.systemRoles))).Methods("GET")

	// Caller-scoped routes, no capability required
	api.HandleFunc("/tenants/{id}/switch", s.switchTenant).Methods("POST")
	api.HandleFunc("/me/tenants", s.myTenants).Methods("GET")
	api.HandleFunc("/me/system-role", s.mySystemRole).Methods("GET")
	api.HandleFunc("/workspace-roles", s.workspaceRoles).Methods("GET")
	api.HandleFunc("/feature-flags", s.featureFlags).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router so the caller can wrap it with
// entry middleware.
func (s *Server) Router() *mux.Router {
	return s.router
}

// requireCaller loads the resolved caller or writes a 401
func (s *Server) requireCaller(w http.ResponseWriter, r *http.Request) (*middleware.Caller, bool) {
	caller, err := middleware.CallerFromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "caller identity required")
		return nil, false
	}
	return caller, true
}

// record counts one admin operation outcome
func (s *Server) record(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.AdminOpsTotal.WithLabelValues(operation, outcome).Inc()
}
