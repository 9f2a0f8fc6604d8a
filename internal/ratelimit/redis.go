package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// incrScript increments a counter and arms its expiry on first write, in
// one atomic step. Running it as a script keeps the INCR and PEXPIRE from
// racing across concurrent callers and instances.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisStore is a Redis-backed CounterStore shared across all gateway
// instances.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// IncrementAndGet implements CounterStore. Any transport or script error
// is surfaced as ErrStoreUnavailable so the pipeline can apply its fail
// policy.
func (s *RedisStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = time.Millisecond
	}

	count, err := incrScript.Run(ctx, s.client, []string{redisKeyPrefix + key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: redis incr: %v", ErrStoreUnavailable, err)
	}

	return count, nil
}

// Get implements CounterStore. A missing key reads as zero; expiry is
// Redis's own TTL, so an expired key is simply gone.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, redisKeyPrefix+key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: redis get: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}
