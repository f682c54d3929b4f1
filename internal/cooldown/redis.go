package cooldown

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps cooldowns in Redis so they survive restarts and are shared
// between bot replicas.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to url (redis://...) and pings it.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errorf("parse url", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errorf("ping", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Acquire(ctx context.Context, key string, d time.Duration) (bool, time.Duration, error) {
	if d <= 0 {
		return true, 0, nil
	}
	ok, err := s.client.SetNX(ctx, key, 1, d).Result()
	if err != nil {
		return false, 0, errorf("acquire", err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, errorf("ttl", err)
	}
	if ttl < 0 {
		// The key vanished or lost its expiry between the two calls.
		ttl = 0
	}
	return false, ttl, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errorf("release", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
