package rbac

import (
	"net/http"

	"github.com/atriumhq/atrium/pkg/config"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/middleware"
	"github.com/atriumhq/atrium/pkg/observability"
)

// Gate enforces capability decisions at the HTTP boundary
type Gate struct {
	flags   config.FlagSource
	metrics *observability.Metrics
}

// NewGate creates a gate backed by the given feature flag source. Metrics
// may be nil.
func NewGate(flags config.FlagSource, metrics *observability.Metrics) *Gate {
	return &Gate{flags: flags, metrics: metrics}
}

// Require returns middleware that rejects requests whose caller lacks the
// capability. A disabled feature answers 404 so the admin surface is
// invisible, not merely locked.
func (g *Gate) Require(capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.flags.Enabled() {
				g.reject(w, r, OutcomeFeatureDisabled)
				return
			}

			caller, err := middleware.CallerFromContext(r.Context())
			if err != nil {
				g.count("no_caller")
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "caller identity required")
				return
			}

			outcome := Decide(true, caller.Role, capability)
			if outcome != OutcomeAllow {
				g.reject(w, r, outcome)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, outcome Outcome) {
	g.count(outcome.String())

	switch outcome {
	case OutcomeFeatureDisabled:
		httputil.WriteError(w, http.StatusNotFound, "feature_unavailable", "this feature is not available")
	default:
		observability.FromContext(r.Context()).
			WithField("path", r.URL.Path).
			Warn("capability denied")
		httputil.WriteError(w, http.StatusForbidden, "forbidden", "insufficient privileges")
	}
}

func (g *Gate) count(reason string) {
	if g.metrics != nil {
		g.metrics.RejectedRequestsTotal.WithLabelValues(reason).Inc()
	}
}
