// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: Context keys shared across packages must be defined here.
// This prevents typos, documents dependencies, and makes key usage
// discoverable. Request-scoped logging keys live in pkg/observability.
//
// USAGE PATTERN:
//   import "github.com/atriumhq/atrium/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.CallerKey, caller)
//   caller := ctx.Value(contextkeys.CallerKey).(*middleware.Caller)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// CallerKey contains *middleware.Caller
	// Set by: middleware.CallerMiddleware (pkg/middleware/caller.go)
	// Required by: RBAC gate, all admin endpoints
	// Type: *middleware.Caller
	CallerKey Key = "caller"
)

// WithCaller adds the resolved caller to the context. The caller is passed
// as interface{} to keep this package free of import cycles.
func WithCaller(ctx context.Context, caller interface{}) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}
