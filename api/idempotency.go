package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper stores Idempotency-Key values in Redis so every instance
// rejects a replayed create request.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, key string) string {
	return "idem:" + userID + ":" + key
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, key), 1, r.ttl).Result()
}

// Remove deletes a previously recorded key so a failed request may be retried.
func (r *RedisDeduper) Remove(ctx context.Context, userID, key string) error {
	return r.client.Del(context.WithoutCancel(ctx), r.key(userID, key)).Err()
}
