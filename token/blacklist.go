package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	blacklistPrefix  = "blacklist:"
	blacklistTimeout = 500 * time.Millisecond
)

// Blacklist is the Redis-backed revocation list. Entries are keyed by
// jti and expire together with the token they revoke, so the list never
// outgrows the set of still-live tokens.
type Blacklist struct {
	redis   redis.UniversalClient
	timeout time.Duration
	now     func() time.Time
}

func NewBlacklist(client redis.UniversalClient) *Blacklist {
	return &Blacklist{redis: client, timeout: blacklistTimeout, now: time.Now}
}

func blacklistKey(jti string) string {
	return blacklistPrefix + jti
}

// Revoke marks the token behind claims as revoked until it would have
// expired anyway. Revoking an already-expired token is a no-op.
func (b *Blacklist) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	remaining := claims.ExpiresAt.Time.Sub(b.now())
	if remaining <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.redis.Set(ctx, blacklistKey(claims.ID), "1", remaining).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBlacklistUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked. When Redis cannot be
// reached the check fails closed: the token is reported revoked and the
// backend error is returned alongside so callers can log it.
func (b *Blacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.redis.Get(ctx, blacklistKey(jti)).Err(); err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return true, fmt.Errorf("%w: %v", ErrBlacklistUnavailable, err)
	}
	return true, nil
}
