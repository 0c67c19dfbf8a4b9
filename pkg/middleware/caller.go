// Package middleware provides request-entry middleware: caller resolution
// and redis-backed rate limiting. Authentication itself is the host
// application's job; it forwards the authenticated account id in a header.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/atriumhq/atrium/pkg/config"
	"github.com/atriumhq/atrium/pkg/contextkeys"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/roles"
)

// AccountIDHeader carries the authenticated caller's account id, set by the
// host application's auth layer in front of this service.
const AccountIDHeader = "X-Atrium-Account-ID"

// Caller is the resolved identity of the current request
type Caller struct {
	ID   int64
	Role roles.SystemRole
}

// RoleSource loads an account's effective system role
type RoleSource interface {
	ResolveSystemRole(ctx context.Context, accountID int64) (roles.SystemRole, error)
}

// ErrNoCaller is returned by CallerFromContext when no caller was resolved
var ErrNoCaller = errors.New("no caller in request context")

// CallerFromContext retrieves the resolved caller
func CallerFromContext(ctx context.Context) (*Caller, error) {
	if caller, ok := ctx.Value(contextkeys.CallerKey).(*Caller); ok {
		return caller, nil
	}
	return nil, ErrNoCaller
}

// CallerMiddleware resolves the caller's system role and stores it in the
// request context. When the feature flag is off, every caller resolves to
// the base tier so no stored role grants privilege through a disabled
// feature. Requests without the account header pass through unresolved;
// routes that need a caller reject them downstream.
func CallerMiddleware(source RoleSource, flags config.FlagSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(AccountIDHeader)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			accountID, err := strconv.ParseInt(header, 10, 64)
			if err != nil || accountID <= 0 {
				httputil.WriteError(w, http.StatusBadRequest, "invalid_account_id", "invalid account id header")
				return
			}

			caller := &Caller{ID: accountID, Role: roles.RoleUser}
			if flags.Enabled() {
				role, err := source.ResolveSystemRole(r.Context(), accountID)
				if err != nil {
					httputil.WriteError(w, http.StatusUnauthorized, "unknown_account", "account not recognized")
					return
				}
				caller.Role = role
			}

			ctx := contextkeys.WithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
