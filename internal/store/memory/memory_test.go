package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyMembership(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.StoreFamilyToken(ctx, "fam-1", "tok-1", time.Hour))

	ok, err := s.FamilyHasToken(ctx, "fam-1", "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.FamilyHasToken(ctx, "fam-1", "tok-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// Rotation replaces the current member.
	require.NoError(t, s.StoreFamilyToken(ctx, "fam-1", "tok-2", time.Hour))
	ok, err = s.FamilyHasToken(ctx, "fam-1", "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.FamilyHasToken(ctx, "fam-1", "tok-2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.RemoveFamily(ctx, "fam-1"))
	ok, err = s.FamilyHasToken(ctx, "fam-1", "tok-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFamilyEntryExpires(t *testing.T) {
	s := New()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.StoreFamilyToken(ctx, "fam-1", "tok-1", time.Minute))

	now = now.Add(2 * time.Minute)
	ok, err := s.FamilyHasToken(ctx, "fam-1", "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlacklist(t *testing.T) {
	s := New()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	ok, err := s.IsTokenBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.BlacklistToken(ctx, "tok-1", time.Minute))
	ok, err = s.IsTokenBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.IsTokenBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockoutWindow(t *testing.T) {
	s := New()
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })

	for i := 1; i <= 3; i++ {
		count, err := s.RecordFailedLogin(ctx, "login:reader@example.com", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	count, err := s.FailedLoginCount(ctx, "login:reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Window elapses; the counter resets.
	now = now.Add(16 * time.Minute)
	count, err = s.FailedLoginCount(ctx, "login:reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = s.RecordFailedLogin(ctx, "login:reader@example.com", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.ClearFailedLogins(ctx, "login:reader@example.com"))
	count, err = s.FailedLoginCount(ctx, "login:reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
