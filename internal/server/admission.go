package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pivotdata/syncgate/internal/quota"
	"github.com/pivotdata/syncgate/internal/ratelimit"
)

// Rate limit response headers. Reset is absolute unix seconds: the moment
// the current window ends and the counter logically returns to zero.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRateLimitError     = "X-RateLimit-Error"
	HeaderRetryAfter         = "Retry-After"
)

// rateLimitErrorFlag is the HeaderRateLimitError value on store failure.
const rateLimitErrorFlag = "rate_limit_check_failed"

// FailPolicy selects the behavior when the counter store is unreachable.
type FailPolicy string

const (
	// FailOpen admits the request and flags the malfunction via
	// HeaderRateLimitError.
	FailOpen FailPolicy = "open"

	// FailClosed rejects the request with 503 and the same flag header,
	// so operators can tell limiter malfunction from quota exhaustion.
	FailClosed FailPolicy = "closed"
)

// Admission decides, per request, whether a tenant may proceed to
// business logic. Quota is checked before payload validation so that
// malformed requests still consume quota.
type Admission struct {
	limiter  *ratelimit.Limiter
	resolver *quota.Resolver
	policy   FailPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// NewAdmission wires the admission pipeline's rate limiting stage.
func NewAdmission(limiter *ratelimit.Limiter, resolver *quota.Resolver, policy FailPolicy, logger *slog.Logger) *Admission {
	return &Admission{
		limiter:  limiter,
		resolver: resolver,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for retry phrasing. Test hook.
func (a *Admission) WithClock(now func() time.Time) *Admission {
	a.now = now
	return a
}

// ForCategory returns middleware that charges each request against the
// tenant's quota for one category. Rate limit headers are attached on
// every evaluated response, admitted or not, so clients can always
// observe their remaining quota.
func (a *Admission) ForCategory(category quota.Category) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.admit(category, next, w, r)
		})
	}
}

// ByPath is like ForCategory but derives the category from the request
// path, for routes not registered through an explicit category group.
func (a *Admission) ByPath(categorizer *PathCategorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.admit(categorizer.Categorize(r.URL.Path), next, w, r)
		})
	}
}

func (a *Admission) admit(category quota.Category, next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := IdentityFrom(ctx)
	quotas := a.resolver.Resolve(identity)

	decision, err := a.limiter.Check(ctx, identity.Key, category, quotas)
	if err != nil {
		AddError(ctx, err)
		a.logger.Error("rate limit check failed",
			slog.String("tenant", identity.Key),
			slog.String("category", string(category)),
			slog.String("error", err.Error()),
		)

		w.Header().Set(HeaderRateLimitError, rateLimitErrorFlag)
		if a.policy == FailClosed {
			writeError(w, http.StatusServiceUnavailable, "rate_limit_unavailable",
				"Rate limiting is temporarily unavailable. Please try again later.")
			return
		}

		// Fail open: admit without rate headers, but keep the flag so the
		// malfunction is observable.
		next.ServeHTTP(w, r)
		return
	}

	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
	w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))

	if !decision.Allowed {
		retryAfter := decision.RetryAfter(a.now())
		w.Header().Set(HeaderRetryAfter, strconv.Itoa(retryAfter))

		AddLogField(ctx, "rate_limited", string(category))
		a.logger.Warn("request blocked by rate limit",
			slog.String("tenant", identity.Key),
			slog.String("category", string(category)),
			slog.Int("limit", decision.Limit),
			slog.Bool("license_valid", identity.Valid),
		)

		writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
			fmt.Sprintf("Rate limit exceeded for %s operations. Limit: %d requests %s. Please wait %d seconds before retrying.",
				quota.Label(category), decision.Limit, windowPhrase(a.limiter.Window()), retryAfter))
		return
	}

	next.ServeHTTP(w, r)
}

// windowPhrase renders the accounting window for error messages.
func windowPhrase(window time.Duration) string {
	if window == time.Minute {
		return "per minute"
	}
	return fmt.Sprintf("per %d seconds", int(window/time.Second))
}
