// Package store defines the persistence contracts of the auth core: the
// refresh-token family registry with its blacklist, the login lockout
// counters, and the external user datastore. Implementations live in the
// memory, redis, and postgres subpackages; the service layer depends only
// on the interfaces here so tests can swap backends freely.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/literati-app/auth-service/internal/models"
)

var (
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists reports a uniqueness conflict on insert.
	ErrAlreadyExists = errors.New("already exists")
)

// FamilyStore tracks refresh-token families. Each family has at most one
// registered current member; rotating a family replaces the member and the
// consumed predecessor goes to the blacklist. Blacklist entries must
// outlive the refresh tokens they cover, so callers pass TTLs derived from
// the refresh lifetime.
//
// All mutations must be atomic per key with respect to concurrent refresh
// attempts on the same family.
type FamilyStore interface {
	// StoreFamilyToken registers tokenID as the current member of familyID.
	StoreFamilyToken(ctx context.Context, familyID, tokenID string, ttl time.Duration) error

	// FamilyHasToken reports whether tokenID is the registered current
	// member of familyID.
	FamilyHasToken(ctx context.Context, familyID, tokenID string) (bool, error)

	// RemoveFamily wipes the family's membership. Invoked on breach
	// detection and logout; afterwards no descendant token can rotate.
	RemoveFamily(ctx context.Context, familyID string) error

	// BlacklistToken marks a consumed refresh token ID.
	BlacklistToken(ctx context.Context, tokenID string, ttl time.Duration) error

	// IsTokenBlacklisted reports whether the token ID has been consumed.
	IsTokenBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// LockoutStore keeps fixed-window failed-login counters keyed by
// identifier (and optionally client IP). The window starts at the first
// failure and the counter disappears when it elapses.
type LockoutStore interface {
	// RecordFailedLogin increments the counter for key and returns the new
	// count within the current window.
	RecordFailedLogin(ctx context.Context, key string, window time.Duration) (int, error)

	// FailedLoginCount returns the current counter without mutating it.
	// A missing key counts as zero.
	FailedLoginCount(ctx context.Context, key string) (int, error)

	// ClearFailedLogins resets the counter after a successful login.
	ClearFailedLogins(ctx context.Context, key string) error
}

// UserStore is the collaborator interface over the external user
// datastore. The auth core owns none of this data except the token
// version, which it bumps to force a global logout.
type UserStore interface {
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error)

	// BumpTokenVersion increments the user's token version and returns the
	// new value. Every previously issued token becomes stale.
	BumpTokenVersion(ctx context.Context, id uuid.UUID) (int, error)
}
