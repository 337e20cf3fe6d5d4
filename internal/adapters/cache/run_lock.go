package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modvault/monetization-agent/internal/ports"
)

// RedisRunLock serializes orchestrator runs across replicas with a
// SETNX-with-TTL key. The TTL bounds how long a crashed run can hold
// the lock.
type RedisRunLock struct {
	client *redis.Client
	prefix string
}

func NewRedisRunLock(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{client: client, prefix: "monetization:lock:"}
}

func (l *RedisRunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", name, err)
	}
	return ok, nil
}

func (l *RedisRunLock) Release(ctx context.Context, name string) error {
	if err := l.client.Del(ctx, l.prefix+name).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", name, err)
	}
	return nil
}

var _ ports.RunLock = (*RedisRunLock)(nil)
