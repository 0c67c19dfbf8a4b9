package api

import (
	"net/http"

	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/roles"
)

// workspaceRoles returns the fixed workspace role catalog. Static data,
// no query.
func (s *Server) workspaceRoles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, roles.WorkspaceRoleCatalog())
}

func (s *Server) systemRoles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, roles.SystemRoleCatalog())
}

func (s *Server) mySystemRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"account_id":  caller.ID,
		"system_role": caller.Role,
	})
}

func (s *Server) featureFlags(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]bool{
		"multi_tenant_admin": s.flags.Enabled(),
	})
}
