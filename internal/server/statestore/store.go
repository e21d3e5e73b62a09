// Package statestore provides a TTL-bounded key-value store with atomic
// one-time-read semantics. The login flow uses it for CSRF state: a state
// token is valid for exactly one successful retrieval within its TTL, so a
// replayed callback observes "absent" and fails.
//
// Two implementations exist: an in-process map guarded by a mutex (the
// default) and a Redis backend for multi-instance deployments.
package statestore

import (
	"context"
	"time"
)

// Store is a TTL key-value store. Implementations must be safe for use from
// concurrent requests; in particular TakeOnce must be atomic so that of N
// racing callers exactly one receives the value.
type Store[V any] interface {
	// Put saves value under key with the given TTL, replacing any
	// previous entry.
	Put(ctx context.Context, key string, value V, ttl time.Duration) error

	// TakeOnce atomically retrieves and deletes the value. It returns
	// ok=false if the key is absent, already consumed, or expired.
	TakeOnce(ctx context.Context, key string) (V, bool, error)

	// Get retrieves the value without consuming it. Expired entries read
	// as absent.
	Get(ctx context.Context, key string) (V, bool, error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// SweepExpired removes expired entries and returns how many were
	// dropped. Backends with native expiry may make this a no-op.
	SweepExpired(ctx context.Context) (int, error)
}
