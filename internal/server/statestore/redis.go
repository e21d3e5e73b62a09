package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server. Values are stored as JSON;
// TakeOnce maps to GETDEL, which is atomic server-side, so single-use
// semantics hold across multiple vaultd instances.
type Redis[V any] struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedis wraps client as a Store. keyPrefix namespaces the keys so
// independent instances (OAuth state, sessions) can share one server.
func NewRedis[V any](client redis.UniversalClient, keyPrefix string) *Redis[V] {
	return &Redis[V]{client: client, keyPrefix: keyPrefix}
}

func (r *Redis[V]) key(k string) string {
	return r.keyPrefix + k
}

func (r *Redis[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal state value: %w", err)
	}
	return r.client.Set(ctx, r.key(key), data, ttl).Err()
}

func (r *Redis[V]) TakeOnce(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := r.client.GetDel(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis getdel: %w", err)
	}

	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("unmarshal state value: %w", err)
	}
	return value, true, nil
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get: %w", err)
	}

	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("unmarshal state value: %w", err)
	}
	return value, true, nil
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// SweepExpired is a no-op: Redis expires keys itself.
func (*Redis[V]) SweepExpired(context.Context) (int, error) {
	return 0, nil
}
