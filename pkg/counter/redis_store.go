package counter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance so every worker
// process observes the same per-tenant counters.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	return &RedisStore{client: client}, nil
}

// Incr increments the counter, setting the expiry only on key creation
// (EXPIRE NX) so the bucket self-cleans a fixed duration after first use.
func (s *RedisStore) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.IncrBy(ctx, key, delta)
	if ttl > 0 {
		pipe.ExpireNX(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) IncrFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.IncrByFloat(ctx, key, delta)
	if ttl > 0 {
		pipe.ExpireNX(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return val, nil
}

func (s *RedisStore) GetFloat(ctx context.Context, key string) (float64, error) {
	val, err := s.client.Get(ctx, key).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return val, nil
}
