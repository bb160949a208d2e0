package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// MarkSeen claims the last-seen write slot for uid. It returns true at most
// once per interval; callers skip the database write when it returns false.
func (r *RedisClient) MarkSeen(ctx context.Context, uid string, interval time.Duration) (bool, error) {
	key := fmt.Sprintf("seen:user:%s", uid)
	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), interval).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark seen: %w", err)
	}
	return ok, nil
}

var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local vals = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(vals[1])
local last = tonumber(vals[2])
if tokens == nil then tokens = burst end
if last == nil then last = now end
local delta = math.max(0, now - last)
local new_tokens = math.min(burst, tokens + (delta * rate / 1000))
local allowed = 0
if new_tokens >= 1 then
	new_tokens = new_tokens - 1
	allowed = 1
end
redis.call('HMSET', key, 'tokens', new_tokens, 'last', now)
redis.call('PEXPIRE', key, 60000)
return allowed
`)

// AllowAction implements a Redis-backed token-bucket limiter per key (user+action).
// Returns true if the action is allowed, false if rate-limited.
func (r *RedisClient) AllowAction(ctx context.Context, uid, action string, rate, burst int) (bool, error) {
	key := fmt.Sprintf("rl:%s:%s", action, uid)
	now := time.Now().UnixMilli()

	res, err := tokenBucket.Run(ctx, r.client, []string{key}, rate, burst, now).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
