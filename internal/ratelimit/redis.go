package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript checks every quota's sorted set and records the request
// in all of them only when each has room. KEYS holds one sorted set per quota;
// ARGV is now_ms, member, then limit/window_ms pairs. It returns
// {allowed, remaining, limit, reset_ms, retry_ms} for the binding quota.
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local member = ARGV[2]
local allowed = 1
local retry = 0

for i, key in ipairs(KEYS) do
  local limit = tonumber(ARGV[2 * i + 1])
  local window = tonumber(ARGV[2 * i + 2])
  redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
  if redis.call('ZCARD', key) >= limit then
    allowed = 0
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local wait = tonumber(oldest[2]) + window - now
    if wait > retry then retry = wait end
  end
end

if allowed == 1 then
  for i, key in ipairs(KEYS) do
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, tonumber(ARGV[2 * i + 2]))
  end
end

local remaining = -1
local bindLimit = 0
local reset = now
for i, key in ipairs(KEYS) do
  local limit = tonumber(ARGV[2 * i + 1])
  local window = tonumber(ARGV[2 * i + 2])
  local left = limit - redis.call('ZCARD', key)
  if remaining < 0 or left < remaining then
    remaining = left
    bindLimit = limit
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    if oldest[2] then reset = tonumber(oldest[2]) + window else reset = now end
  end
end

return {allowed, remaining, bindLimit, reset, retry}
`)

// RedisLimiter is a sliding-log limiter backed by Redis sorted sets so that
// several gateway instances share one view of each client's quota. The check
// and the record happen atomically inside a Lua script.
//
// When Redis cannot be reached the request is admitted and a warning logged.
type RedisLimiter struct {
	client redis.Scripter
	quotas []Quota
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a limiter storing its logs under prefix. The caller
// owns the client and closes it.
func NewRedisLimiter(client redis.Scripter, quotas []Quota, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		quotas: quotas,
		prefix: prefix,
		now:    time.Now,
	}
}

// Allow checks whether a request from the given key should be allowed.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, Info) {
	now := l.now()
	nowMs := now.UnixMilli()

	// The hash tag keeps all of a key's sets in one cluster slot.
	keys := make([]string, len(l.quotas))
	args := make([]interface{}, 0, 2+2*len(l.quotas))
	args = append(args, nowMs, uuid.NewString())
	for i, q := range l.quotas {
		keys[i] = fmt.Sprintf("%s:{%s}:%d:%s", l.prefix, key, i, strconv.FormatInt(q.Window.Milliseconds(), 10))
		args = append(args, q.Limit, q.Window.Milliseconds())
	}

	res, err := slidingWindowScript.Run(ctx, l.client, keys, args...).Int64Slice()
	if err != nil || len(res) != 5 {
		slog.Warn("Rate limit backend unavailable, admitting request",
			"key", key,
			"error", err,
		)
		return true, l.unlimitedInfo(now)
	}

	info := Info{
		Remaining: int(res[1]),
		Limit:     int(res[2]),
		ResetAt:   time.UnixMilli(res[3]),
	}
	allowed := res[0] == 1
	if !allowed {
		info.RetryAfter = time.Duration(res[4]) * time.Millisecond
	}
	return allowed, info
}

func (l *RedisLimiter) unlimitedInfo(now time.Time) Info {
	if len(l.quotas) == 0 {
		return Info{ResetAt: now}
	}
	return Info{Limit: l.quotas[0].Limit, Remaining: l.quotas[0].Limit, ResetAt: now}
}

// Close is a no-op; the Redis client is owned by the caller.
func (l *RedisLimiter) Close() {}
