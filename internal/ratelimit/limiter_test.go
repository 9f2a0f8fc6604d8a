package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pivotdata/syncgate/internal/quota"
)

// windowStart is aligned to a 60s boundary so tests sit mid-window
// predictably.
var windowStart = time.Unix(1_700_000_040, 0).Truncate(time.Minute)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T) (*Limiter, *MemoryStore, *clock) {
	t.Helper()
	clk := &clock{now: windowStart.Add(10 * time.Second)}
	store := NewMemoryStore().WithClock(clk.Now)
	limiter := NewLimiter(store, WithClock(clk.Now))
	return limiter, store, clk
}

func TestCheck_AdmitsUpToLimit(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	quotas := quota.Set{quota.CategoryWorkspaces: 3}
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		decision, err := limiter.Check(ctx, "tenant-1", quota.CategoryWorkspaces, quotas)
		if err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
		if !decision.Allowed {
			t.Errorf("request %d: Allowed = false, want true", i)
		}
		if want := 3 - i; decision.Remaining != want {
			t.Errorf("request %d: Remaining = %d, want %d", i, decision.Remaining, want)
		}
	}

	decision, err := limiter.Check(ctx, "tenant-1", quota.CategoryWorkspaces, quotas)
	if err != nil {
		t.Fatalf("Check over limit: %v", err)
	}
	if decision.Allowed {
		t.Error("request over limit: Allowed = true, want false")
	}
	if decision.Remaining != 0 {
		t.Errorf("request over limit: Remaining = %d, want 0", decision.Remaining)
	}
}

func TestCheck_ZeroLimitAlwaysDenied(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	ctx := context.Background()

	decision, err := limiter.Check(ctx, "unknown-tenant", quota.CategoryFiles, quota.Set{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if decision.Allowed {
		t.Error("zero-limit tenant admitted on first request")
	}
	if decision.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", decision.Remaining)
	}
	if decision.Limit != 0 {
		t.Errorf("Limit = %d, want 0", decision.Limit)
	}
}

func TestCheck_ResetAtIsWindowEnd(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)

	decision, err := limiter.Check(context.Background(), "tenant-1", quota.CategoryAuth, quota.Set{quota.CategoryAuth: 5})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	want := windowStart.Add(time.Minute)
	if !decision.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", decision.ResetAt, want)
	}
}

func TestCheck_WindowRollover(t *testing.T) {
	limiter, _, clk := newTestLimiter(t)
	quotas := quota.Set{quota.CategoryWorkspaces: 2}
	ctx := context.Background()

	// Exhaust the current window.
	for i := 0; i < 3; i++ {
		if _, err := limiter.Check(ctx, "tenant-1", quota.CategoryWorkspaces, quotas); err != nil {
			t.Fatal(err)
		}
	}

	// Cross the boundary: the next window starts fresh.
	clk.Advance(time.Minute)

	decision, err := limiter.Check(ctx, "tenant-1", quota.CategoryWorkspaces, quotas)
	if err != nil {
		t.Fatalf("Check after rollover: %v", err)
	}
	if !decision.Allowed {
		t.Error("first request after rollover denied")
	}
	if decision.Remaining != 1 {
		t.Errorf("Remaining after rollover = %d, want limit-1 = 1", decision.Remaining)
	}
}

func TestCheck_ChargesOnAttempt(t *testing.T) {
	limiter, store, clk := newTestLimiter(t)
	quotas := quota.Set{quota.CategoryAnnotations: 2}
	ctx := context.Background()

	// Five attempts against a limit of two: all five must be counted,
	// rejected requests included.
	for i := 0; i < 5; i++ {
		if _, err := limiter.Check(ctx, "tenant-1", quota.CategoryAnnotations, quotas); err != nil {
			t.Fatal(err)
		}
	}

	windowID := clk.Now().Unix() / 60
	key := counterKey("tenant-1", quota.CategoryAnnotations, windowID)
	count, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if count != 5 {
		t.Errorf("stored count = %d, want 5", count)
	}
}

func TestCheck_ConcurrentAdmitsExactlyLimit(t *testing.T) {
	limiter, store, clk := newTestLimiter(t)
	const limit = 10
	const n = 40
	quotas := quota.Set{quota.CategoryFiles: limit}
	ctx := context.Background()

	var admitted, rejected atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := limiter.Check(ctx, "tenant-1", quota.CategoryFiles, quotas)
			if err != nil {
				t.Errorf("Check: %v", err)
				return
			}
			if decision.Allowed {
				admitted.Add(1)
			} else {
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != limit {
		t.Errorf("admitted = %d, want exactly %d", admitted.Load(), limit)
	}
	if rejected.Load() != n-limit {
		t.Errorf("rejected = %d, want %d", rejected.Load(), n-limit)
	}

	windowID := clk.Now().Unix() / 60
	key := counterKey("tenant-1", quota.CategoryFiles, windowID)
	count, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if count != n {
		t.Errorf("final stored count = %d, want %d (count drift)", count, n)
	}
}

func TestCheck_TenantsAndCategoriesIsolated(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	quotas := quota.Set{quota.CategoryWorkspaces: 1, quota.CategoryFiles: 1}
	ctx := context.Background()

	if _, err := limiter.Check(ctx, "tenant-1", quota.CategoryWorkspaces, quotas); err != nil {
		t.Fatal(err)
	}

	// Different category, same tenant.
	decision, err := limiter.Check(ctx, "tenant-1", quota.CategoryFiles, quotas)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed {
		t.Error("other category affected by workspaces counter")
	}

	// Same category, different tenant.
	decision, err = limiter.Check(ctx, "tenant-2", quota.CategoryWorkspaces, quotas)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed {
		t.Error("other tenant affected by tenant-1 counter")
	}
}

type failingStore struct{}

func (failingStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Get(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestCheck_StoreFailureIsStoreUnavailable(t *testing.T) {
	clk := &clock{now: windowStart.Add(10 * time.Second)}
	limiter := NewLimiter(failingStore{}, WithClock(clk.Now))

	decision, err := limiter.Check(context.Background(), "tenant-1", quota.CategoryAuth, quota.Set{quota.CategoryAuth: 5})
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
	if decision.Allowed {
		t.Error("decision on store failure must not default to allowed")
	}
	if decision.Limit != 5 {
		t.Errorf("Limit = %d, want 5 so headers stay accurate", decision.Limit)
	}
}

type hangingStore struct{}

func (hangingStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (hangingStore) Get(ctx context.Context, key string) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestCheck_StoreTimeoutIsBounded(t *testing.T) {
	limiter := NewLimiter(hangingStore{}, WithStoreTimeout(10*time.Millisecond))

	start := time.Now()
	_, err := limiter.Check(context.Background(), "tenant-1", quota.CategoryAuth, quota.Set{quota.CategoryAuth: 5})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
	if elapsed > time.Second {
		t.Errorf("Check blocked %v, want bounded by store timeout", elapsed)
	}
}

func TestStatus_SnapshotWithoutCharging(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	quotas := quota.Set{quota.CategoryWorkspaces: 10, quota.CategoryAuth: 5}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Check(ctx, "tenant-1", quota.CategoryWorkspaces, quotas); err != nil {
			t.Fatal(err)
		}
	}

	statuses, err := limiter.Status(ctx, "tenant-1", quotas, quota.CategoryWorkspaces, quota.CategoryAuth)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	ws := statuses[quota.CategoryWorkspaces]
	if ws.Remaining != 7 {
		t.Errorf("workspaces remaining = %d, want 7", ws.Remaining)
	}
	if !ws.Allowed {
		t.Error("workspaces with headroom must report allowed")
	}
	if want := windowStart.Add(time.Minute); !ws.ResetAt.Equal(want) {
		t.Errorf("workspaces ResetAt = %v, want %v", ws.ResetAt, want)
	}

	// Untouched category shows full headroom.
	if auth := statuses[quota.CategoryAuth]; auth.Remaining != 5 || auth.Limit != 5 {
		t.Errorf("auth status = %+v, want untouched limit 5", auth)
	}

	// The snapshot itself must not have consumed anything.
	again, err := limiter.Status(ctx, "tenant-1", quotas, quota.CategoryWorkspaces)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if again[quota.CategoryWorkspaces].Remaining != 7 {
		t.Errorf("remaining after snapshot = %d, want 7 (status reads must not charge)", again[quota.CategoryWorkspaces].Remaining)
	}
}

func TestStatus_ExhaustedCategoryNotAllowed(t *testing.T) {
	limiter, _, _ := newTestLimiter(t)
	quotas := quota.Set{quota.CategoryAuth: 1}
	ctx := context.Background()

	if _, err := limiter.Check(ctx, "tenant-1", quota.CategoryAuth, quotas); err != nil {
		t.Fatal(err)
	}

	statuses, err := limiter.Status(ctx, "tenant-1", quotas, quota.CategoryAuth)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	auth := statuses[quota.CategoryAuth]
	if auth.Allowed {
		t.Error("exhausted category must report not allowed")
	}
	if auth.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", auth.Remaining)
	}
}

func TestStatus_StoreFailure(t *testing.T) {
	limiter := NewLimiter(failingStore{}, WithClock(testClockAt(windowStart)))

	_, err := limiter.Status(context.Background(), "tenant-1", quota.Set{quota.CategoryAuth: 5}, quota.CategoryAuth)
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}

func testClockAt(at time.Time) func() time.Time {
	return func() time.Time { return at.Add(10 * time.Second) }
}

func TestDecision_RetryAfter(t *testing.T) {
	decision := Decision{ResetAt: windowStart.Add(time.Minute)}

	if got := decision.RetryAfter(windowStart.Add(10 * time.Second)); got != 50 {
		t.Errorf("RetryAfter = %d, want 50", got)
	}
	// Never below one second, even at the boundary.
	if got := decision.RetryAfter(windowStart.Add(time.Minute)); got != 1 {
		t.Errorf("RetryAfter at reset = %d, want 1", got)
	}
}
