package store

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore is an etcd-backed Store. TTLs map to etcd leases, so the server
// reclaims expired entries without any sweeper on our side.
type EtcdStore struct {
	client *clientv3.Client
}

// NewEtcdStore wraps an existing etcd client.
func NewEtcdStore(client *clientv3.Client) *EtcdStore {
	return &EtcdStore{client: client}
}

// OpenEtcd dials etcd and returns a store over it.
func OpenEtcd(ctx context.Context, endpoints []string, dialTimeout time.Duration) (*EtcdStore, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("etcd store requires at least one endpoint")
	}
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Context:     ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &EtcdStore{client: client}, nil
}

// Close releases the underlying client.
func (s *EtcdStore) Close() error {
	return s.client.Close()
}

// Get returns the value stored under key, or ErrNotFound.
func (s *EtcdStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("etcd get: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}
	return resp.Kvs[0].Value, nil
}

// SetWithTTL stores value under key, attaching a lease when ttl > 0. Leases
// are granted in whole seconds, rounded up.
func (s *EtcdStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var opts []clientv3.OpOption
	if ttl > 0 {
		seconds := int64((ttl + time.Second - 1) / time.Second)
		lease, err := s.client.Grant(ctx, seconds)
		if err != nil {
			return fmt.Errorf("etcd lease grant: %w", err)
		}
		opts = append(opts, clientv3.WithLease(lease.ID))
	}

	if _, err := s.client.Put(ctx, key, string(value), opts...); err != nil {
		return fmt.Errorf("etcd put: %w", err)
	}
	return nil
}

// Delete removes the given keys and returns how many existed.
func (s *EtcdStore) Delete(ctx context.Context, keys ...string) (int, error) {
	count := 0
	for _, key := range keys {
		resp, err := s.client.Delete(ctx, key)
		if err != nil {
			return count, fmt.Errorf("etcd delete: %w", err)
		}
		count += int(resp.Deleted)
	}
	return count, nil
}

// Keys returns all keys matching a glob pattern. etcd only supports prefix
// queries, so the literal prefix before the first wildcard bounds the range
// and the full pattern filters the result.
func (s *EtcdStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	prefix := pattern
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		prefix = pattern[:i]
	}

	resp, err := s.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, fmt.Errorf("etcd range: %w", err)
	}

	var keys []string
	for _, kv := range resp.Kvs {
		key := string(kv.Key)
		if ok, err := path.Match(pattern, key); err != nil {
			return nil, err
		} else if ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
