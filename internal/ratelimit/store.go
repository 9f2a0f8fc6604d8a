package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable reports that the counter store could not be reached
// or answered too slowly. Callers must treat this as a limiter fault, never
// as "count=0": the fail-open/fail-closed decision happens in the pipeline
// where it can be flagged to the client.
var ErrStoreUnavailable = errors.New("counter store unavailable")

// CounterStore is the single shared mutable resource of the admission
// pipeline: a key/count store with atomic increment and per-key expiry.
//
// IncrementAndGet increments the counter at key and returns the value
// after the increment. N concurrent calls with the same key return the
// values 1..N in some order; no increment may be lost or double-counted.
// The key expires ttl after its first write, so stale windows never
// accumulate storage or leak into the next window.
//
// Get reads the current count without charging it. An absent or expired
// key reads as zero; zero is only a valid answer from a healthy store,
// an unreachable one returns ErrStoreUnavailable.
type CounterStore interface {
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}
