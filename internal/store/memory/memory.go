// Package memory provides in-process implementations of the family and
// lockout stores. It is the default backend for tests and single-node
// development; production deployments use the redis backend so state
// survives restarts and is shared across replicas.
package memory

import (
	"context"
	"sync"
	"time"
)

type familyEntry struct {
	tokenID   string
	expiresAt time.Time
}

type counterEntry struct {
	count     int
	windowEnd time.Time
}

// Store implements store.FamilyStore and store.LockoutStore with plain
// maps guarded by a mutex. Expired entries are purged lazily on access.
type Store struct {
	mu        sync.Mutex
	families  map[string]familyEntry
	blacklist map[string]time.Time
	failures  map[string]counterEntry

	now func() time.Time
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		families:  make(map[string]familyEntry),
		blacklist: make(map[string]time.Time),
		failures:  make(map[string]counterEntry),
		now:       time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) StoreFamilyToken(_ context.Context, familyID, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.families[familyID] = familyEntry{
		tokenID:   tokenID,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *Store) FamilyHasToken(_ context.Context, familyID, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.families[familyID]
	if !ok {
		return false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.families, familyID)
		return false, nil
	}
	return entry.tokenID == tokenID, nil
}

func (s *Store) RemoveFamily(_ context.Context, familyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.families, familyID)
	return nil
}

func (s *Store) BlacklistToken(_ context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blacklist[tokenID] = s.now().Add(ttl)
	s.purgeBlacklistLocked()
	return nil
}

func (s *Store) IsTokenBlacklisted(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.blacklist[tokenID]
	if !ok {
		return false, nil
	}
	if s.now().After(expiry) {
		delete(s.blacklist, tokenID)
		return false, nil
	}
	return true, nil
}

func (s *Store) RecordFailedLogin(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.failures[key]
	if !ok || now.After(entry.windowEnd) {
		// Fixed window: the first failure opens it.
		entry = counterEntry{count: 0, windowEnd: now.Add(window)}
	}
	entry.count++
	s.failures[key] = entry
	return entry.count, nil
}

func (s *Store) FailedLoginCount(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.failures[key]
	if !ok {
		return 0, nil
	}
	if s.now().After(entry.windowEnd) {
		delete(s.failures, key)
		return 0, nil
	}
	return entry.count, nil
}

func (s *Store) ClearFailedLogins(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.failures, key)
	return nil
}

// purgeBlacklistLocked drops expired blacklist entries. Called with the
// mutex held on the write path so the map cannot grow without bound.
func (s *Store) purgeBlacklistLocked() {
	now := s.now()
	for id, expiry := range s.blacklist {
		if now.After(expiry) {
			delete(s.blacklist, id)
		}
	}
}
