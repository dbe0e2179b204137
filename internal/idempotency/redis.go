package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

const (
	redisPrefix  = "studio:idem:"
	pendingValue = "pending"
)

// RedisStore shares keys across server replicas.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to reach redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (*Record, error) {
	return r.acquire(ctx, key, ttl, true)
}

func (r *RedisStore) acquire(ctx context.Context, key string, ttl time.Duration, retry bool) (*Record, error) {
	ok, err := r.client.SetNX(ctx, redisPrefix+key, pendingValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("unable to claim idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := r.client.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		if retry {
			return r.acquire(ctx, key, ttl, false)
		}
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read idempotency key: %w", err)
	}
	if string(raw) == pendingValue {
		return nil, ErrInFlight
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record: %w", err)
	}
	return &rec, nil
}

func (r *RedisStore) Complete(ctx context.Context, key string, rec *Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("unable to encode idempotency record: %w", err)
	}
	return r.client.Set(ctx, redisPrefix+key, raw, ttl).Err()
}

func (r *RedisStore) Abandon(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisPrefix+key).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
