package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/pkg/config"
	"github.com/atriumhq/atrium/pkg/roles"
)

type fakeRoleSource struct {
	roles map[int64]roles.SystemRole
	calls int
}

func (f *fakeRoleSource) ResolveSystemRole(ctx context.Context, accountID int64) (roles.SystemRole, error) {
	f.calls++
	role, ok := f.roles[accountID]
	if !ok {
		return "", errors.New("account not found")
	}
	return role, nil
}

func TestCallerMiddleware(t *testing.T) {
	source := &fakeRoleSource{roles: map[int64]roles.SystemRole{
		7:  roles.RoleSystemAdmin,
		12: roles.RoleUser,
	}}

	var seen *Caller
	var seenErr error
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, seenErr = CallerFromContext(r.Context())
	})

	t.Run("resolves role from header", func(t *testing.T) {
		handler := CallerMiddleware(source, config.StaticFlag(true))(inner)

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set(AccountIDHeader, "7")
		handler.ServeHTTP(httptest.NewRecorder(), r)

		require.NoError(t, seenErr)
		assert.Equal(t, int64(7), seen.ID)
		assert.Equal(t, roles.RoleSystemAdmin, seen.Role)
	})

	t.Run("missing header passes through unresolved", func(t *testing.T) {
		seen, seenErr = nil, nil
		handler := CallerMiddleware(source, config.StaticFlag(true))(inner)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

		assert.Nil(t, seen)
		assert.ErrorIs(t, seenErr, ErrNoCaller)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		handler := CallerMiddleware(source, config.StaticFlag(true))(inner)

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set(AccountIDHeader, "not-a-number")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_account_id")
	})

	t.Run("unknown account rejected", func(t *testing.T) {
		handler := CallerMiddleware(source, config.StaticFlag(true))(inner)

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set(AccountIDHeader, "999")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "unknown_account")
	})

	t.Run("flag off forces base tier without lookup", func(t *testing.T) {
		seen = nil
		before := source.calls
		handler := CallerMiddleware(source, config.StaticFlag(false))(inner)

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set(AccountIDHeader, "7")
		handler.ServeHTTP(httptest.NewRecorder(), r)

		require.NotNil(t, seen)
		assert.Equal(t, roles.RoleUser, seen.Role)
		assert.Equal(t, before, source.calls)
	})
}
