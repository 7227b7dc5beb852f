// Package redisstore implements ratelimit.Store against Redis, using a Lua
// script so the documented four operations (drop expired, count,
// conditionally admit, set TTL) execute as a single atomic round trip.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// admitScript implements the sorted-set sliding window from §4.1: scores are
// arrival time in ms, members are unique request ids. It drops members older
// than the window, counts what remains, and either admits (adding the new
// member and refreshing the TTL) or returns the sentinel -1.
const admitScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local ttl_sec = tonumber(ARGV[5])

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window_ms)
local count = redis.call("ZCARD", key)

if count >= limit then
	return {-1, count}
end

redis.call("ZADD", key, now, member)
redis.call("EXPIRE", key, ttl_sec)
return {1, count + 1}
`

// Store is a ratelimit.Store backed by Redis sorted sets.
type Store struct {
	client redis.UniversalClient
	script *redis.Script
}

// New wraps an existing Redis client. The caller owns the client's lifecycle
// (Ping/Close); New does not establish or verify connectivity itself.
func New(client redis.UniversalClient) *Store {
	return &Store{
		client: client,
		script: redis.NewScript(admitScript),
	}
}

// Admit implements ratelimit.Store via admitScript.
func (s *Store) Admit(ctx context.Context, key string, windowMs int64, limit int, now time.Time) (bool, int, int64, error) {
	nowMs := now.UnixMilli()
	ttlSec := (windowMs+999)/1000 + 1
	member := uuid.NewString()

	res, err := s.script.Run(ctx, s.client, []string{prefixKey(key)}, nowMs, windowMs, limit, member, ttlSec).Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("ratelimit redis script: %w", err)
	}
	if len(res) != 2 {
		return false, 0, 0, fmt.Errorf("ratelimit redis script: unexpected reply shape %v", res)
	}

	admittedFlag, ok := res[0].(int64)
	if !ok {
		return false, 0, 0, fmt.Errorf("ratelimit redis script: unexpected admit flag type %T", res[0])
	}
	count, ok := res[1].(int64)
	if !ok {
		return false, 0, 0, fmt.Errorf("ratelimit redis script: unexpected count type %T", res[1])
	}

	resetEpochSec := now.Add(time.Duration(windowMs) * time.Millisecond).Unix()
	if admittedFlag == -1 {
		return false, 0, resetEpochSec, nil
	}

	remaining := int(limit) - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, resetEpochSec, nil
}

func prefixKey(key string) string {
	return "narrator:ratelimit:" + key
}
