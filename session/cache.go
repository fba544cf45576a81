package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix  = "session:"
	cacheTimeout = 500 * time.Millisecond
)

// Cache is the Redis read-through layer in front of the durable store.
// Entries carry the same TTL as the session itself so an unrevoked entry
// can never outlive its session.
type Cache struct {
	redis   redis.UniversalClient
	timeout time.Duration
}

func NewCache(client redis.UniversalClient) *Cache {
	return &Cache{redis: client, timeout: cacheTimeout}
}

func cacheKey(id string) string {
	return cachePrefix + id
}

// cachedSession is the JSON wire form. RefreshHash is a slice because
// encoding/json base64s []byte but not [32]byte.
type cachedSession struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"accountId"`
	DeviceID     string     `json:"deviceId"`
	DeviceName   string     `json:"deviceName"`
	Platform     string     `json:"platform"`
	IP           string     `json:"ip"`
	UserAgent    string     `json:"userAgent"`
	RefreshHash  []byte     `json:"refreshHash"`
	RememberMe   bool       `json:"rememberMe"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActiveAt time.Time  `json:"lastActiveAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	RevokedAt    *time.Time `json:"revokedAt,omitempty"`
}

func (c *Cache) Get(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.redis.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var wire cachedSession
	if err := json.Unmarshal(raw, &wire); err != nil {
		// A corrupt entry behaves like a miss; the durable store wins.
		return nil, ErrNotFound
	}

	sess := &Session{
		ID:           wire.ID,
		AccountID:    wire.AccountID,
		DeviceID:     wire.DeviceID,
		DeviceName:   wire.DeviceName,
		Platform:     wire.Platform,
		IP:           wire.IP,
		UserAgent:    wire.UserAgent,
		RememberMe:   wire.RememberMe,
		CreatedAt:    wire.CreatedAt,
		LastActiveAt: wire.LastActiveAt,
		ExpiresAt:    wire.ExpiresAt,
		RevokedAt:    wire.RevokedAt,
	}
	copy(sess.RefreshHash[:], wire.RefreshHash)
	return sess, nil
}

// Set writes the whole session under its TTL. Sessions already at or
// past expiry are not cached.
func (c *Cache) Set(ctx context.Context, sess *Session, now time.Time) error {
	ttl := sess.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}

	wire := cachedSession{
		ID:           sess.ID,
		AccountID:    sess.AccountID,
		DeviceID:     sess.DeviceID,
		DeviceName:   sess.DeviceName,
		Platform:     sess.Platform,
		IP:           sess.IP,
		UserAgent:    sess.UserAgent,
		RefreshHash:  sess.RefreshHash[:],
		RememberMe:   sess.RememberMe,
		CreatedAt:    sess.CreatedAt,
		LastActiveAt: sess.LastActiveAt,
		ExpiresAt:    sess.ExpiresAt,
		RevokedAt:    sess.RevokedAt,
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.redis.Set(ctx, cacheKey(sess.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
