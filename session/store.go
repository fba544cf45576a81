package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxSessions bounds active sessions per account.
	DefaultMaxSessions = 10
	// DefaultTTL is the session lifetime without remember-me.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultRememberMeTTL is the session lifetime with remember-me.
	DefaultRememberMeTTL = 30 * 24 * time.Hour
)

// Store combines the durable store and the cache. Writes go durable
// first; cache failures are logged and absorbed, never surfaced, since
// every read path can fall back to the durable store.
type Store struct {
	durable     DurableStore
	cache       *Cache
	maxSessions int
	ttl         time.Duration
	rememberTTL time.Duration
	log         zerolog.Logger
}

type StoreConfig struct {
	MaxSessions   int
	TTL           time.Duration
	RememberMeTTL time.Duration
}

func NewStore(durable DurableStore, cache *Cache, cfg StoreConfig, log zerolog.Logger) *Store {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RememberMeTTL <= 0 {
		cfg.RememberMeTTL = DefaultRememberMeTTL
	}
	return &Store{
		durable:     durable,
		cache:       cache,
		maxSessions: cfg.MaxSessions,
		ttl:         cfg.TTL,
		rememberTTL: cfg.RememberMeTTL,
		log:         log,
	}
}

// Lifetime returns the session TTL for the remember-me choice. The
// refresh token issued alongside a session uses the same value.
func (s *Store) Lifetime(rememberMe bool) time.Duration {
	if rememberMe {
		return s.rememberTTL
	}
	return s.ttl
}

// Create establishes a session for the device, first revoking any prior
// session on the same device and then evicting least-recently-active
// sessions until the account is under its cap. The cap is a soft bound:
// concurrent creates can transiently exceed it and the next create
// reconciles.
func (s *Store) Create(ctx context.Context, id, accountID string, dev DeviceInfo, refreshToken string, rememberMe bool, now time.Time) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	active, err := s.durable.ListActive(ctx, accountID, now)
	if err != nil {
		return nil, err
	}

	// One active session per device: a re-login replaces the old one.
	remaining := active[:0]
	for _, prev := range active {
		if prev.DeviceID == dev.DeviceID {
			s.revokeOne(ctx, prev.ID, now)
			continue
		}
		remaining = append(remaining, prev)
	}

	// ListActive orders most recently active first, so eviction walks
	// from the tail.
	for len(remaining) >= s.maxSessions {
		oldest := remaining[len(remaining)-1]
		s.revokeOne(ctx, oldest.ID, now)
		s.log.Info().
			Str("account_id", accountID).
			Str("session_id", oldest.ID).
			Msg("session evicted over per-account cap")
		remaining = remaining[:len(remaining)-1]
	}

	sess := &Session{
		ID:           id,
		AccountID:    accountID,
		DeviceID:     dev.DeviceID,
		DeviceName:   dev.DeviceName,
		Platform:     dev.Platform,
		IP:           dev.IP,
		UserAgent:    dev.UserAgent,
		RefreshHash:  HashRefreshToken(refreshToken),
		RememberMe:   rememberMe,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(s.Lifetime(rememberMe)),
	}

	if err := s.durable.Insert(ctx, sess); err != nil {
		return nil, err
	}
	s.cacheSet(ctx, sess, now)
	return sess, nil
}

// Validate looks the session up cache-first and checks liveness and the
// refresh-token hash in constant time. An inactive session or a hash
// mismatch yields (nil, nil) without touching last_active_at; only a
// fully valid session is touched.
func (s *Store) Validate(ctx context.Context, id, refreshToken string, now time.Time) (*Session, error) {
	sess, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !sess.Active(now) {
		return nil, nil
	}
	given := HashRefreshToken(refreshToken)
	if subtle.ConstantTimeCompare(given[:], sess.RefreshHash[:]) != 1 {
		return nil, nil
	}

	sess.LastActiveAt = now
	if err := s.durable.Touch(ctx, id, now); err != nil {
		s.log.Warn().Err(err).Str("session_id", id).Msg("session touch failed")
	}
	s.cacheSet(ctx, sess, now)
	return sess, nil
}

// Get returns the session by ID regardless of state.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	return s.get(ctx, id)
}

// Revoke marks the session revoked in the durable store, then drops the
// cache entry so the revocation is observed immediately.
func (s *Store) Revoke(ctx context.Context, id string, now time.Time) error {
	if err := s.durable.Revoke(ctx, id, now); err != nil {
		return err
	}
	s.cacheDelete(ctx, id)
	return nil
}

// RevokeAll revokes every active session of the account except exceptID.
func (s *Store) RevokeAll(ctx context.Context, accountID, exceptID string, now time.Time) (int, error) {
	active, err := s.durable.ListActive(ctx, accountID, now)
	if err != nil {
		return 0, err
	}

	n, err := s.durable.RevokeAll(ctx, accountID, exceptID, now)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(active))
	for _, sess := range active {
		if sess.ID != exceptID {
			ids = append(ids, sess.ID)
		}
	}
	s.cacheDelete(ctx, ids...)
	return n, nil
}

// ListActive returns the account's active sessions from the durable
// store, most recently active first.
func (s *Store) ListActive(ctx context.Context, accountID string, now time.Time) ([]*Session, error) {
	return s.durable.ListActive(ctx, accountID, now)
}

// CreatedSince returns sessions created in the trailing window,
// including already revoked ones. Input for the activity scorer.
func (s *Store) CreatedSince(ctx context.Context, accountID string, since time.Time) ([]*Session, error) {
	return s.durable.ListCreatedSince(ctx, accountID, since)
}

func (s *Store) get(ctx context.Context, id string) (*Session, error) {
	if s.cache != nil {
		sess, err := s.cache.Get(ctx, id)
		switch {
		case err == nil:
			return sess, nil
		case errors.Is(err, ErrCacheUnavailable):
			s.log.Warn().Err(err).Msg("session cache read failed, falling back to durable store")
		}
	}

	sess, err := s.durable.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, sess, time.Now())
	return sess, nil
}

func (s *Store) revokeOne(ctx context.Context, id string, now time.Time) {
	if err := s.durable.Revoke(ctx, id, now); err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Warn().Err(err).Str("session_id", id).Msg("session revoke failed")
	}
	s.cacheDelete(ctx, id)
}

func (s *Store) cacheSet(ctx context.Context, sess *Session, now time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, sess, now); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("session cache write failed")
	}
}

func (s *Store) cacheDelete(ctx context.Context, ids ...string) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	if err := s.cache.Delete(ctx, ids...); err != nil {
		s.log.Warn().Err(err).Msg("session cache invalidation failed")
	}
}
