package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client), mr
}

func TestFamilyMembership(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreFamilyToken(ctx, "fam-1", "tok-1", time.Hour))

	ok, err := s.FamilyHasToken(ctx, "fam-1", "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.FamilyHasToken(ctx, "fam-1", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.StoreFamilyToken(ctx, "fam-1", "tok-2", time.Hour))
	ok, err = s.FamilyHasToken(ctx, "fam-1", "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RemoveFamily(ctx, "fam-1"))
	ok, err = s.FamilyHasToken(ctx, "fam-1", "tok-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFamilyEntryExpires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StoreFamilyToken(ctx, "fam-1", "tok-1", time.Minute))

	mr.FastForward(2 * time.Minute)

	ok, err := s.FamilyHasToken(ctx, "fam-1", "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlacklist(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	ok, err := s.IsTokenBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.BlacklistToken(ctx, "tok-1", time.Minute))
	ok, err = s.IsTokenBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = s.IsTokenBlacklisted(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockoutWindow(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		count, err := s.RecordFailedLogin(ctx, "login:reader@example.com", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	count, err := s.FailedLoginCount(ctx, "login:reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	mr.FastForward(16 * time.Minute)

	count, err = s.FailedLoginCount(ctx, "login:reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestClearFailedLogins(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordFailedLogin(ctx, "login:reader@example.com", 15*time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.ClearFailedLogins(ctx, "login:reader@example.com"))

	count, err := s.FailedLoginCount(ctx, "login:reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUnavailableBackend(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	mr.Close()

	_, err := s.FamilyHasToken(ctx, "fam-1", "tok-1")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.Ping(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}
