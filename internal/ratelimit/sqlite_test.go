package ratelimit

import (
	"context"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SequentialIncrements(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 4; i++ {
		count, err := store.IncrementAndGet(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("IncrementAndGet: %v", err)
		}
		if count != i {
			t.Errorf("count = %d, want %d", count, i)
		}
	}
}

func TestSQLiteStore_KeysAreIndependent(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.IncrementAndGet(ctx, "a", time.Minute); err != nil {
		t.Fatal(err)
	}
	count, err := store.IncrementAndGet(ctx, "b", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count for fresh key = %d, want 1", count)
	}
}

func TestSQLiteStore_ExpiredRowRestartsAtOne(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	store := newTestSQLiteStore(t).WithClock(func() time.Time { return current })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.IncrementAndGet(ctx, "k", 30*time.Second); err != nil {
			t.Fatal(err)
		}
	}

	current = current.Add(31 * time.Second)

	count, err := store.IncrementAndGet(ctx, "k", 30*time.Second)
	if err != nil {
		t.Fatalf("IncrementAndGet after expiry: %v", err)
	}
	if count != 1 {
		t.Errorf("count after expiry = %d, want 1", count)
	}
}

func TestSQLiteStore_GetDoesNotCharge(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if count, err := store.Get(ctx, "k"); err != nil || count != 0 {
		t.Errorf("Get on absent key = (%d, %v), want (0, nil)", count, err)
	}

	if _, err := store.IncrementAndGet(ctx, "k", time.Minute); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		count, err := store.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if count != 1 {
			t.Errorf("Get after read %d = %d, want 1 (reads must not increment)", i, count)
		}
	}
}

func TestSQLiteStore_GetExpiredRowIsZero(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	store := newTestSQLiteStore(t).WithClock(func() time.Time { return current })
	ctx := context.Background()

	if _, err := store.IncrementAndGet(ctx, "k", 30*time.Second); err != nil {
		t.Fatal(err)
	}

	current = current.Add(31 * time.Second)

	if count, _ := store.Get(ctx, "k"); count != 0 {
		t.Errorf("Get on expired row = %d, want 0", count)
	}
}

func TestSQLiteStore_PurgeExpired(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	store := newTestSQLiteStore(t).WithClock(func() time.Time { return current })
	ctx := context.Background()

	if _, err := store.IncrementAndGet(ctx, "old", 10*time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := store.IncrementAndGet(ctx, "fresh", time.Hour); err != nil {
		t.Fatal(err)
	}

	current = current.Add(time.Minute)
	if err := store.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}

	// The purged key starts over; the fresh one keeps counting.
	count, err := store.IncrementAndGet(ctx, "old", 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("purged key count = %d, want 1", count)
	}

	count, err = store.IncrementAndGet(ctx, "fresh", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("fresh key count = %d, want 2", count)
	}
}
