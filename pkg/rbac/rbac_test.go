package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atriumhq/atrium/pkg/config"
	"github.com/atriumhq/atrium/pkg/contextkeys"
	"github.com/atriumhq/atrium/pkg/middleware"
	"github.com/atriumhq/atrium/pkg/roles"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		role       roles.SystemRole
		capability Capability
		want       Outcome
	}{
		{"disabled hides from system admin", false, roles.RoleSystemAdmin, CapabilityManageUsers, OutcomeFeatureDisabled},
		{"disabled hides from base user", false, roles.RoleUser, CapabilityManageTenants, OutcomeFeatureDisabled},
		{"system admin manages users", true, roles.RoleSystemAdmin, CapabilityManageUsers, OutcomeAllow},
		{"system admin assigns members", true, roles.RoleSystemAdmin, CapabilityAssignMembers, OutcomeAllow},
		{"system admin manages tenants", true, roles.RoleSystemAdmin, CapabilityManageTenants, OutcomeAllow},
		{"tenant manager manages tenants", true, roles.RoleTenantManager, CapabilityManageTenants, OutcomeAllow},
		{"tenant manager cannot manage users", true, roles.RoleTenantManager, CapabilityManageUsers, OutcomeForbidden},
		{"tenant manager cannot assign members", true, roles.RoleTenantManager, CapabilityAssignMembers, OutcomeForbidden},
		{"base user gets nothing", true, roles.RoleUser, CapabilityManageTenants, OutcomeForbidden},
		{"unknown capability forbidden", true, roles.RoleSystemAdmin, Capability("bogus"), OutcomeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.enabled, tt.role, tt.capability))
		})
	}
}

func TestGateRequire(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	request := func(role roles.SystemRole, withCaller bool) *http.Request {
		r := httptest.NewRequest("GET", "/api/v1/admin/users", nil)
		if withCaller {
			ctx := contextkeys.WithCaller(r.Context(), &middleware.Caller{ID: 1, Role: role})
			r = r.WithContext(ctx)
		}
		return r
	}

	t.Run("feature disabled answers 404 even for admins", func(t *testing.T) {
		gate := NewGate(config.StaticFlag(false), nil)
		w := httptest.NewRecorder()
		gate.Require(CapabilityManageUsers)(inner).ServeHTTP(w, request(roles.RoleSystemAdmin, true))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "feature_unavailable")
	})

	t.Run("no caller answers 401", func(t *testing.T) {
		gate := NewGate(config.StaticFlag(true), nil)
		w := httptest.NewRecorder()
		gate.Require(CapabilityManageUsers)(inner).ServeHTTP(w, request(roles.RoleUser, false))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("insufficient role answers 403", func(t *testing.T) {
		gate := NewGate(config.StaticFlag(true), nil)
		w := httptest.NewRecorder()
		gate.Require(CapabilityManageUsers)(inner).ServeHTTP(w, request(roles.RoleUser, true))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "forbidden")
	})

	t.Run("allowed role passes through", func(t *testing.T) {
		gate := NewGate(config.StaticFlag(true), nil)
		w := httptest.NewRecorder()
		gate.Require(CapabilityManageTenants)(inner).ServeHTTP(w, request(roles.RoleTenantManager, true))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
