package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore adapts a Redis client to the SharedStore interface.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a SharedStore backed by the given Redis client.
// All keys are prefixed to keep the namespace shareable with other consumers.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "fooddata"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get implements SharedStore.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+":"+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

// Set implements SharedStore.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+":"+key, value, ttl).Err()
}
