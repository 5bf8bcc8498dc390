package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"otp-auth-service/internal/client"
	"otp-auth-service/internal/hashing"
	"otp-auth-service/internal/util"
)

const rateLimitPrefix = "rate_limit:otp_send:"

// slidingWindowScript prunes entries at least one window old, then admits
// and records the request only if the window still has room.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]
	local ttl_ms = tonumber(ARGV[5])

	-- Remove expired entries
	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	-- Count current entries
	local current_count = redis.call('ZCARD', key)

	if current_count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, ttl_ms)
		return {1, current_count + 1}
	end
	return {0, current_count}
`)

// RateLimitCache is the shared sliding-window limiter for send requests.
type RateLimitCache struct {
	client *client.RedisClient
	hasher *hashing.Hasher
	clock  util.Clock
	limit  int
	window time.Duration
}

func NewRateLimitCache(client *client.RedisClient, hasher *hashing.Hasher, clock util.Clock, limit int, window time.Duration) *RateLimitCache {
	return &RateLimitCache{
		client: client,
		hasher: hasher,
		clock:  clock,
		limit:  limit,
		window: window,
	}
}

func (c *RateLimitCache) Allow(ctx context.Context, email string) (bool, error) {
	key := rateLimitPrefix + c.hasher.Key(email)

	now := c.clock.Now().UnixMilli()
	windowStart := now - c.window.Milliseconds()
	// Members must be unique or two requests in the same millisecond collapse.
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	res, err := slidingWindowScript.Run(ctx, c.client.Client, []string{key},
		now, windowStart, c.limit, member, c.window.Milliseconds()).Int64Slice()
	if err != nil {
		util.Error("Sliding window rate limit failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("sliding window rate limit failed: %w", err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("unexpected rate limit script result: %v", res)
	}

	allowed := res[0] == 1
	if !allowed {
		util.Debug("Rate limit exceeded", zap.String("key", key), zap.Int64("count", res[1]), zap.Int("limit", c.limit))
	}
	return allowed, nil
}
