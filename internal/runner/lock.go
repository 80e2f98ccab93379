package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paperwave/internal/redis"
)

// RunLock guards against duplicate concurrent runs of the same submission.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisRunLock struct {
	client *redis.Client
}

// NewRedisRunLock builds a lock backed by redis SET NX. The TTL is a safety
// net: a crashed process stops blocking resubmission once it expires.
func NewRedisRunLock(client *redis.Client) RunLock {
	return &redisRunLock{client: client}
}

func (l *redisRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (l *redisRunLock) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, key); err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
