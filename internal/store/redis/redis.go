// Package redis backs the family and lockout stores with Redis so that
// rotation state survives process restarts and is shared across replicas.
//
// Key layout:
//
//	tf:<familyID>  -> current refresh token ID (TTL = refresh lifetime)
//	bl:<tokenID>   -> "1" while the consumed token could still be replayed
//	fl:<key>       -> failed-login counter (fixed window)
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps transport-level Redis failures so callers can
// distinguish an unreachable backend from a negative lookup.
var ErrUnavailable = errors.New("redis unavailable")

const (
	familyPrefix    = "tf:"
	blacklistPrefix = "bl:"
	lockoutPrefix   = "fl:"
)

// Store implements store.FamilyStore and store.LockoutStore on top of a
// Redis client. Safe for concurrent use.
type Store struct {
	client goredis.UniversalClient
}

// New wraps the given Redis client.
func New(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) StoreFamilyToken(ctx context.Context, familyID, tokenID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, familyPrefix+familyID, tokenID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) FamilyHasToken(ctx context.Context, familyID, tokenID string) (bool, error) {
	current, err := s.client.Get(ctx, familyPrefix+familyID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return current == tokenID, nil
}

func (s *Store) RemoveFamily(ctx context.Context, familyID string) error {
	if err := s.client.Del(ctx, familyPrefix+familyID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) BlacklistToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, blacklistPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Store) IsTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, blacklistPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

func (s *Store) RecordFailedLogin(ctx context.Context, key string, window time.Duration) (int, error) {
	counterKey := lockoutPrefix + key

	count, err := s.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: only the first failure arms the TTL.
	if count == 1 {
		if err := s.client.Expire(ctx, counterKey, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return int(count), nil
}

func (s *Store) FailedLoginCount(ctx context.Context, key string) (int, error) {
	count, err := s.client.Get(ctx, lockoutPrefix+key).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (s *Store) ClearFailedLogins(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockoutPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping reports backend availability and round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
