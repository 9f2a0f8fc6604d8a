package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pivotdata/syncgate/internal/quota"
)

// DefaultWindow is the accounting window length when none is configured.
const DefaultWindow = 60 * time.Second

// DefaultStoreTimeout bounds a single counter store call. A store that
// answers slower than this is treated as unavailable rather than holding
// the request.
const DefaultStoreTimeout = 2 * time.Second

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is the end of the current window, when the counter
	// logically returns to zero.
	ResetAt time.Time
}

// RetryAfter returns whole seconds until the window resets, at least 1.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(d.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter applies fixed-window quotas per (tenant, category) pair on top
// of a CounterStore.
//
// Windows are epoch-aligned: window id = floor(now / window length). The
// known weakness of fixed windows is that a client can burst up to twice
// the limit across a window boundary; that trade-off is accepted here
// because a fixed window needs only an atomic counter and makes the
// "exactly N admitted per window" guarantee trivial to verify. Moving to
// sliding windows or token buckets changes the data model and should be a
// deliberate upgrade.
type Limiter struct {
	store        CounterStore
	window       time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow sets the accounting window length.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithStoreTimeout bounds each counter store call.
func WithStoreTimeout(timeout time.Duration) Option {
	return func(l *Limiter) {
		if timeout > 0 {
			l.storeTimeout = timeout
		}
	}
}

// WithClock overrides the limiter's clock. Used by tests to pin windows.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store CounterStore, opts ...Option) *Limiter {
	l := &Limiter{
		store:        store,
		window:       DefaultWindow,
		storeTimeout: DefaultStoreTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Check charges one request against the tenant's quota for a category and
// decides whether it is admitted.
//
// Every checked request increments the counter, including ones that end
// up rejected. Charging on attempt caps retry storms: a client hammering
// the limit keeps pushing its own reset further out of reach. A counter
// store failure returns a Decision carrying the limit and reset so the
// caller can still emit headers, alongside an error wrapping
// ErrStoreUnavailable.
func (l *Limiter) Check(ctx context.Context, tenantKey string, category quota.Category, quotas quota.Set) (Decision, error) {
	limit := quotas.Limit(category)

	now := l.now()
	windowSecs := int64(l.window / time.Second)
	windowID := now.Unix() / windowSecs
	resetAt := time.Unix((windowID+1)*windowSecs, 0)

	decision := Decision{
		Limit:   limit,
		ResetAt: resetAt,
	}

	key := counterKey(tenantKey, category, windowID)
	ttl := resetAt.Sub(now)

	ctx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()

	count, err := l.store.IncrementAndGet(ctx, key, ttl)
	if err != nil {
		if !errors.Is(err, ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return decision, fmt.Errorf("rate limit check for %s/%s: %w", tenantKey, category, err)
	}

	decision.Allowed = count <= int64(limit)
	if remaining := int64(limit) - count; remaining > 0 {
		decision.Remaining = int(remaining)
	}

	return decision, nil
}

// Status reads the tenant's current standing in each requested category
// without charging any counter. The returned decisions carry the same
// limit, remaining, and reset a Check at this instant would, so a client
// can poll its headroom before committing to a burst.
func (l *Limiter) Status(ctx context.Context, tenantKey string, quotas quota.Set, categories ...quota.Category) (map[quota.Category]Decision, error) {
	now := l.now()
	windowSecs := int64(l.window / time.Second)
	windowID := now.Unix() / windowSecs
	resetAt := time.Unix((windowID+1)*windowSecs, 0)

	ctx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()

	statuses := make(map[quota.Category]Decision, len(categories))
	for _, category := range categories {
		count, err := l.store.Get(ctx, counterKey(tenantKey, category, windowID))
		if err != nil {
			if !errors.Is(err, ErrStoreUnavailable) {
				err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			return nil, fmt.Errorf("rate limit status for %s/%s: %w", tenantKey, category, err)
		}

		limit := quotas.Limit(category)
		decision := Decision{
			Allowed: count < int64(limit),
			Limit:   limit,
			ResetAt: resetAt,
		}
		if remaining := int64(limit) - count; remaining > 0 {
			decision.Remaining = int(remaining)
		}
		statuses[category] = decision
	}

	return statuses, nil
}

// counterKey identifies one (tenant, category, window) counter. The
// window id in the key means a new window always starts from an absent
// key; expiry of old keys is storage hygiene, not correctness.
func counterKey(tenantKey string, category quota.Category, windowID int64) string {
	return fmt.Sprintf("%s:%s:%d", tenantKey, category, windowID)
}
