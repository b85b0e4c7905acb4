package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the shared-store side of a pool: a token bucket keyed by pool
// id, shared by every process so capacity is enforced cluster-wide.
// TryAcquire reports whether a permit was available.
type Store interface {
	TryAcquire(ctx context.Context, poolID string, cfg PoolConfig) (bool, error)
}

// tokenBucketScript implements a lazy-refill token bucket entirely inside
// Redis so the check-and-decrement is atomic without a client-side
// transaction. State is a hash of {tokens, updated_at_ms}; refill is
// computed from elapsed time at read time rather than a ticking background
// job, the same lazy-evaluation approach the teacher's circuit breaker
// applies to TTL expiry (compute staleness from a stored timestamp, don't
// schedule a timer for it).
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_per_sec = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "updated_at_ms")
local tokens = tonumber(data[1])
local updated_at_ms = tonumber(data[2])

if tokens == nil then
  tokens = capacity
  updated_at_ms = now_ms
end

local elapsed_sec = (now_ms - updated_at_ms) / 1000.0
if elapsed_sec > 0 then
  tokens = math.min(capacity, tokens + elapsed_sec * refill_per_sec)
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", key, "tokens", tostring(tokens), "updated_at_ms", tostring(now_ms))
redis.call("EXPIRE", key, 3600)

return allowed
`

// RedisStore is the Store backing described in spec §4.9: pool state held
// in Redis, mutated through a Lua script so the read-refill-decrement
// sequence is atomic without client-side locking.
type RedisStore struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, script: redis.NewScript(tokenBucketScript)}
}

func (s *RedisStore) TryAcquire(ctx context.Context, poolID string, cfg PoolConfig) (bool, error) {
	key := "ratelimit:{" + poolID + "}"

	nowMS := time.Now().UnixMilli()

	res, err := s.script.Run(ctx, s.client, []string{key}, cfg.Capacity, cfg.RefillPerSecond, nowMS).Int()
	if err != nil {
		return false, fmt.Errorf("ratelimit: token bucket script for pool %q: %w", poolID, err)
	}

	return res == 1, nil
}
