package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pivotdata/syncgate/internal/quota"
)

// statusCategories is the category set reported by the status endpoint.
var statusCategories = []quota.Category{
	quota.CategoryWorkspaces,
	quota.CategoryFiles,
	quota.CategoryAnnotations,
	quota.CategoryAuth,
}

// StatusResponse is the wire shape of the rate limit status endpoint.
type StatusResponse struct {
	Tenant        string                    `json:"tenant"`
	WindowSeconds int                       `json:"window_seconds"`
	Categories    map[string]CategoryStatus `json:"categories"`
}

// CategoryStatus is one category's standing in the current window.
type CategoryStatus struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

// StatusHandler reports the tenant's remaining quota per category for the
// current window. It reads the counters without charging them, so clients
// can poll their headroom freely; the endpoint itself is therefore not
// behind an admission group.
func (a *Admission) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity := IdentityFrom(ctx)
		quotas := a.resolver.Resolve(identity)

		statuses, err := a.limiter.Status(ctx, identity.Key, quotas, statusCategories...)
		if err != nil {
			AddError(ctx, err)
			writeError(w, http.StatusServiceUnavailable, "rate_limit_unavailable",
				"Rate limit status is temporarily unavailable. Please try again later.")
			return
		}

		resp := StatusResponse{
			Tenant:        identity.Key,
			WindowSeconds: int(a.limiter.Window() / time.Second),
			Categories:    make(map[string]CategoryStatus, len(statuses)),
		}
		for category, decision := range statuses {
			resp.Categories[string(category)] = CategoryStatus{
				Limit:     decision.Limit,
				Remaining: decision.Remaining,
				Reset:     decision.ResetAt.Unix(),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
