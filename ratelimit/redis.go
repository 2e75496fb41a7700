package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "governor:rl:"

// acquireScript performs the overlapping-window weighted count and the
// conditional increment in one atomic round trip. The caller supplies
// the clock (ARGV[1], unix ms) so decisions are deterministic and
// testable; hosts sharing a limiter are assumed NTP-synced within a
// small fraction of the window.
//
// KEYS[1] = current window bucket, KEYS[2] = previous window bucket.
// ARGV = nowMs, windowMs, limit, windowStartMs.
// Returns {allowed(0/1), remaining, resetAtMs}.
var acquireScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_start = tonumber(ARGV[4])

local curr = tonumber(redis.call('GET', KEYS[1]) or '0')
local prev = tonumber(redis.call('GET', KEYS[2]) or '0')

local elapsed = (now - window_start) / window
local weighted = curr + prev * (1 - elapsed)
local reset_at = window_start + window

if weighted + 1 > limit then
  local rem = limit - math.floor(weighted + 0.5)
  if rem < 0 then rem = 0 end
  return {0, rem, reset_at}
end

curr = redis.call('INCR', KEYS[1])
if curr == 1 then
  redis.call('PEXPIRE', KEYS[1], window * 2)
end

local rem = limit - math.floor(weighted + 1 + 0.5)
if rem < 0 then rem = 0 end
return {1, rem, reset_at}
`)

// Redis is a distributed sliding-window limiter backed by a shared
// Redis instance. All workers calling the same resource key share one
// budget regardless of host.
type Redis struct {
	client redis.Cmdable
	now    func() time.Time
}

var _ Limiter = (*Redis)(nil)

// RedisOption configures the Redis limiter.
type RedisOption func(*Redis)

// WithClock swaps the clock used for window arithmetic (tests).
func WithClock(now func() time.Time) RedisOption {
	return func(r *Redis) { r.now = now }
}

// NewRedis creates a Redis-backed limiter. The caller owns the client
// lifecycle.
func NewRedis(client redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{client: client, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TryAcquire implements Limiter in a single scripted round trip.
func (r *Redis) TryAcquire(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := r.now()
	windowStart := now.Truncate(window)
	windowMs := window.Milliseconds()

	currKey := fmt.Sprintf("%s%s:%d", keyPrefix, key, windowStart.UnixMilli())
	prevKey := fmt.Sprintf("%s%s:%d", keyPrefix, key, windowStart.Add(-window).UnixMilli())

	res, err := acquireScript.Run(ctx, r.client,
		[]string{currKey, prevKey},
		now.UnixMilli(), windowMs, limit, windowStart.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: acquire %q: %w", key, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: acquire %q: unexpected script reply %v", key, res)
	}

	return Decision{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
		ResetAt:   time.UnixMilli(res[2]),
	}, nil
}
