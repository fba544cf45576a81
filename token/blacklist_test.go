package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testBlacklist(t *testing.T) (*Blacklist, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewBlacklist(rdb), mr
}

func revocableClaims(jti string, ttl time.Duration) *Claims {
	return &Claims{
		AccountID: "acct-1",
		Kind:      KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
}

func TestRevokeThenIsRevoked(t *testing.T) {
	bl, _ := testBlacklist(t)
	ctx := context.Background()

	revoked, err := bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, revocableClaims("jti-1", time.Hour)))

	revoked, err = bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestRevocationEntryExpiresWithToken(t *testing.T) {
	bl, mr := testBlacklist(t)
	ctx := context.Background()

	require.NoError(t, bl.Revoke(ctx, revocableClaims("jti-1", time.Minute)))

	mr.FastForward(2 * time.Minute)

	revoked, err := bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	bl, mr := testBlacklist(t)

	require.NoError(t, bl.Revoke(context.Background(), revocableClaims("jti-1", -time.Minute)))
	require.Empty(t, mr.Keys())
}

func TestIsRevokedFailsClosedOnBackendOutage(t *testing.T) {
	bl, mr := testBlacklist(t)
	mr.Close()

	revoked, err := bl.IsRevoked(context.Background(), "jti-1")
	require.ErrorIs(t, err, ErrBlacklistUnavailable)
	require.True(t, revoked)
}
