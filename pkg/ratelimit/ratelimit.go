// Package ratelimit implements the dual-horizon sliding-window limiter of
// spec.md §4.5: a short window (burst) and a long window (sustained rate)
// checked together, both backed by one sorted-set-per-key Lua script so the
// prepend-trim-scan sequence is atomic under concurrent gateway instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkScript unconditionally records the attempt first, then trims stale
// and overflow entries, then counts against both horizons — mirroring
// _examples/original_source/common/src/rate_limit/mod.rs, which LPUSHes
// and LTRIMs before ever counting, so a denied attempt still consumes
// quota. ARGV: now_ms, short_window_ms, short_limit, long_window_ms,
// long_limit, max_list_size, member.
var checkScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local short_window = tonumber(ARGV[2])
local short_limit = tonumber(ARGV[3])
local long_window = tonumber(ARGV[4])
local long_limit = tonumber(ARGV[5])
local max_list_size = tonumber(ARGV[6])
local member = ARGV[7]

redis.call("ZADD", key, now, member)
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - long_window)

local size = redis.call("ZCARD", key)
if max_list_size > 0 and size > max_list_size then
	redis.call("ZREMRANGEBYRANK", key, 0, size - max_list_size - 1)
end

local short_count = redis.call("ZCOUNT", key, now - short_window, "+inf")
local long_count = redis.call("ZCARD", key)
redis.call("PEXPIRE", key, long_window)

if short_count > short_limit or long_count > long_limit then
	return 0
end
return 1
`)

// Limits bounds a caller to at most Short requests per ShortWindow and at
// most Long requests per LongWindow, whichever is hit first. MaxListSize
// caps the number of timestamps kept per key so the script's scan stays
// cheap under sustained abuse.
type Limits struct {
	Short       int
	ShortWindow time.Duration
	Long        int
	LongWindow  time.Duration
	MaxListSize int
}

// Limiter checks and records requests against the dual-horizon window.
type Limiter struct {
	rdb    *redis.Client
	limits Limits
}

func New(rdb *redis.Client, limits Limits) *Limiter {
	return &Limiter{rdb: rdb, limits: limits}
}

// Allow evaluates key against both horizons in one atomic script
// invocation. The attempt is recorded whether or not it is allowed, so a
// denied attempt still counts against both windows. now and member are passed
// in explicitly by the caller to keep this package free of wall-clock/
// randomness calls, so it stays trivially unit-testable.
func (l *Limiter) Allow(ctx context.Context, key string, now time.Time, member string) (bool, error) {
	res, err := checkScript.Run(ctx, l.rdb, []string{key},
		now.UnixMilli(),
		l.limits.ShortWindow.Milliseconds(),
		l.limits.Short,
		l.limits.LongWindow.Milliseconds(),
		l.limits.Long,
		l.limits.MaxListSize,
		member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("evaluating rate limit %s: %w", key, err)
	}
	return res == 1, nil
}
