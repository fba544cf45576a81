package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, *MemoryStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	durable := NewMemoryStore()
	store := NewStore(durable, NewCache(rdb), StoreConfig{MaxSessions: 10}, zerolog.Nop())
	return store, durable, mr
}

func testDevice(n int) DeviceInfo {
	return DeviceInfo{
		DeviceID:   fmt.Sprintf("dev-%d", n),
		DeviceName: fmt.Sprintf("Device %d", n),
		Platform:   "web",
		IP:         "203.0.113.7",
		UserAgent:  "test-agent",
	}
}

func TestCreateAndValidate(t *testing.T) {
	store, _, _ := testStore(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := store.Create(ctx, "", "acct-1", testDevice(1), "refresh-raw", false, now)
	require.NoError(t, err)
	require.Equal(t, now.Add(DefaultTTL), sess.ExpiresAt)

	got, err := store.Validate(ctx, sess.ID, "refresh-raw", now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "acct-1", got.AccountID)
	require.Equal(t, now.Add(time.Minute), got.LastActiveAt)
}

func TestCreateRememberMeExtendsExpiry(t *testing.T) {
	store, _, _ := testStore(t)
	now := time.Now()

	sess, err := store.Create(context.Background(), "", "acct-1", testDevice(1), "refresh-raw", true, now)
	require.NoError(t, err)
	require.Equal(t, now.Add(DefaultRememberMeTTL), sess.ExpiresAt)
}

func TestValidateHashMismatchReturnsNilWithoutTouch(t *testing.T) {
	store, durable, _ := testStore(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := store.Create(ctx, "", "acct-1", testDevice(1), "refresh-raw", false, now)
	require.NoError(t, err)

	got, err := store.Validate(ctx, sess.ID, "some-other-token", now.Add(time.Minute))
	require.NoError(t, err)
	require.Nil(t, got)

	stored, err := durable.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, now, stored.LastActiveAt)
}

func TestValidateExpiredSessionReturnsNil(t *testing.T) {
	store, _, _ := testStore(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := store.Create(ctx, "", "acct-1", testDevice(1), "refresh-raw", false, now)
	require.NoError(t, err)

	got, err := store.Validate(ctx, sess.ID, "refresh-raw", now.Add(DefaultTTL+time.Hour))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestValidateUnknownSessionReturnsNotFound(t *testing.T) {
	store, _, _ := testStore(t)

	_, err := store.Validate(context.Background(), "no-such-id", "refresh-raw", time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateEvictsLeastRecentlyActive(t *testing.T) {
	store, _, _ := testStore(t)
	ctx := context.Background()
	base := time.Now()

	var first *Session
	for i := 0; i < 10; i++ {
		// Later sessions are more recently active.
		sess, err := store.Create(ctx, "", "acct-1", testDevice(i), "refresh-raw", false, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		if i == 0 {
			first = sess
		}
	}

	now := base.Add(time.Hour)
	_, err := store.Create(ctx, "", "acct-1", testDevice(99), "refresh-raw", false, now)
	require.NoError(t, err)

	active, err := store.ListActive(ctx, "acct-1", now)
	require.NoError(t, err)
	require.Len(t, active, 10)
	for _, sess := range active {
		require.NotEqual(t, first.ID, sess.ID, "oldest session should have been evicted")
	}

	// Evicted, not deleted: the row survives with revoked_at set.
	evicted, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, evicted.RevokedAt)
}

func TestCreateReplacesSameDeviceSession(t *testing.T) {
	store, _, _ := testStore(t)
	ctx := context.Background()
	now := time.Now()

	old, err := store.Create(ctx, "", "acct-1", testDevice(1), "refresh-a", false, now)
	require.NoError(t, err)
	fresh, err := store.Create(ctx, "", "acct-1", testDevice(1), "refresh-b", false, now.Add(time.Minute))
	require.NoError(t, err)
	require.NotEqual(t, old.ID, fresh.ID)

	active, err := store.ListActive(ctx, "acct-1", now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, fresh.ID, active[0].ID)
}

func TestRevokeDropsCacheEntry(t *testing.T) {
	store, _, mr := testStore(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := store.Create(ctx, "", "acct-1", testDevice(1), "refresh-raw", false, now)
	require.NoError(t, err)
	require.True(t, mr.Exists("session:"+sess.ID))

	require.NoError(t, store.Revoke(ctx, sess.ID, now.Add(time.Minute)))
	require.False(t, mr.Exists("session:"+sess.ID))

	got, err := store.Validate(ctx, sess.ID, "refresh-raw", now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRevokeAllKeepsCurrentSession(t *testing.T) {
	store, _, _ := testStore(t)
	ctx := context.Background()
	now := time.Now()

	var keep *Session
	for i := 0; i < 4; i++ {
		sess, err := store.Create(ctx, "", "acct-1", testDevice(i), "refresh-raw", false, now)
		require.NoError(t, err)
		if i == 3 {
			keep = sess
		}
	}

	n, err := store.RevokeAll(ctx, "acct-1", keep.ID, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	active, err := store.ListActive(ctx, "acct-1", now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, keep.ID, active[0].ID)
}

func TestValidateFallsBackToDurableOnCacheMiss(t *testing.T) {
	store, _, mr := testStore(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := store.Create(ctx, "", "acct-1", testDevice(1), "refresh-raw", false, now)
	require.NoError(t, err)

	// Simulate cache loss (restart, eviction).
	mr.FlushAll()

	got, err := store.Validate(ctx, sess.ID, "refresh-raw", now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got)

	// The durable hit repopulated the cache.
	require.True(t, mr.Exists("session:"+sess.ID))
}

func TestValidateSurvivesCacheOutage(t *testing.T) {
	store, _, mr := testStore(t)
	ctx := context.Background()
	now := time.Now()

	sess, err := store.Create(ctx, "", "acct-1", testDevice(1), "refresh-raw", false, now)
	require.NoError(t, err)

	mr.Close()

	got, err := store.Validate(ctx, sess.ID, "refresh-raw", now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got)
}
