// Package session tracks one record per (account, device) pair across a
// durable MySQL store and a Redis cache-aside layer. The durable store
// is the source of truth; the cache only accelerates validation and is
// invalidated whole-entry on every revocation.
package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session row exists for an ID.
	ErrNotFound = errors.New("session not found")
	// ErrCacheUnavailable wraps Redis-side failures. Callers treat the
	// cache as an accelerator and fall back to the durable store.
	ErrCacheUnavailable = errors.New("session cache unavailable")
)

// DeviceInfo describes the client a session was established from.
type DeviceInfo struct {
	DeviceID   string
	DeviceName string
	Platform   string
	IP         string
	UserAgent  string
}

// Session is one authenticated device. The refresh token itself is never
// stored; only its SHA-256 digest.
type Session struct {
	ID           string
	AccountID    string
	DeviceID     string
	DeviceName   string
	Platform     string
	IP           string
	UserAgent    string
	RefreshHash  [32]byte
	RememberMe   bool
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// HashRefreshToken digests a raw refresh token for storage and comparison.
func HashRefreshToken(raw string) [32]byte {
	return sha256.Sum256([]byte(raw))
}

// DurableStore is the canonical session persistence contract. The MySQL
// implementation backs production; MemoryStore backs tests.
type DurableStore interface {
	Insert(ctx context.Context, s *Session) error
	// Get returns the session regardless of its state, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// ListActive returns unrevoked, unexpired sessions ordered most
	// recently active first.
	ListActive(ctx context.Context, accountID string, now time.Time) ([]*Session, error)
	// ListCreatedSince returns all sessions created at or after since,
	// regardless of state. Used by the activity scorer.
	ListCreatedSince(ctx context.Context, accountID string, since time.Time) ([]*Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Revoke(ctx context.Context, id string, at time.Time) error
	// RevokeAll revokes every active session of the account except
	// exceptID (pass "" to revoke all). Returns the number revoked.
	RevokeAll(ctx context.Context, accountID, exceptID string, at time.Time) (int, error)
}
