// Package redis provides a Redis-backed lease store for multi-host daemon
// deployments where the SQLite archive is not shared.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rmax-ai/netlord/pkg/store"
)

type LeaseStore struct {
	client *redis.Client
}

func NewLeaseStore(client *redis.Client) *LeaseStore {
	return &LeaseStore{client: client}
}

func (s *LeaseStore) makeKey(name string) string {
	return fmt.Sprintf("netlord:lease:%s", name)
}

func (s *LeaseStore) Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error) {
	key := s.makeKey(name)

	// NX: only set if not exists, with the TTL attached.
	success, err := s.client.SetNX(ctx, key, holderID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}

	if success {
		return true, nil
	}

	// If failed, check if we already hold it and just need to renew.
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existing lease: %w", err)
	}

	if val == holderID {
		return true, s.Renew(ctx, name, holderID, ttl)
	}

	return false, nil
}

func (s *LeaseStore) Renew(ctx context.Context, name, holderID string, ttl time.Duration) error {
	key := s.makeKey(name)

	// Lua script to check the holder before extending expiry.
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`

	ttlMs := int64(ttl / time.Millisecond)

	res, err := s.client.Eval(ctx, script, []string{key}, holderID, ttlMs).Result()
	if err != nil {
		return fmt.Errorf("failed to execute renew script: %w", err)
	}

	success, ok := res.(int64)
	if !ok {
		return fmt.Errorf("unexpected return type from renew script")
	}

	if success == 1 {
		return nil
	}

	return fmt.Errorf("lease lost or stolen")
}

func (s *LeaseStore) Release(ctx context.Context, name, holderID string) error {
	key := s.makeKey(name)

	// Lua script to check the holder before deleting.
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`

	_, err := s.client.Eval(ctx, script, []string{key}, holderID).Result()
	if err != nil {
		return fmt.Errorf("failed to execute release script: %w", err)
	}

	// Returning nil even when nothing was deleted keeps Release idempotent:
	// either way we no longer hold the lease.
	return nil
}

func (s *LeaseStore) Get(ctx context.Context, name string) (*store.Lease, error) {
	key := s.makeKey(name)

	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No lease held
		}
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease ttl: %w", err)
	}

	return &store.Lease{
		Name:      name,
		HolderID:  val,
		ExpiresAt: time.Now().Add(ttl),
		Version:   0, // Redis backend does not track a CAS counter
	}, nil
}
