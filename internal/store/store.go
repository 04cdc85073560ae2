// Package store provides the key-value capability consumed by the approval
// workflow: get, set-with-ttl, delete, and key enumeration.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("key not found")

// Store is a narrow key-value capability with per-entry TTL.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores value under key. A ttl <= 0 means no expiry.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int, error)

	// Keys returns all keys matching a glob pattern (e.g. "approval:*").
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Backend names for Open.
const (
	BackendMemory = "memory"
	BackendEtcd   = "etcd"
)

// Open constructs a store for the named backend. The etcd backend requires
// at least one endpoint.
func Open(ctx context.Context, backend string, endpoints []string, dialTimeout time.Duration) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendEtcd:
		return OpenEtcd(ctx, endpoints, dialTimeout)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
