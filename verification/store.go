// Package verification issues and consumes single-use, purpose-scoped
// tokens (email verification, password reset). Only the SHA-256 of a
// token is persisted; the raw value exists once, in the issue response.
package verification

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

type Purpose string

const (
	PurposeEmailVerify   Purpose = "email_verify"
	PurposePasswordReset Purpose = "password_reset"
)

// ErrInvalidToken covers every consume failure: unknown, expired,
// already used, or wrong purpose. Callers cannot distinguish them.
var ErrInvalidToken = errors.New("verification token invalid or expired")

const rawTokenBytes = 32

// Store persists token hashes in the verification_tokens table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Issue creates a token for the account and returns its raw form.
func (s *Store) Issue(ctx context.Context, accountID string, purpose Purpose, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("verification: ttl must be positive")
	}

	buf := make([]byte, rawTokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_tokens (account_id, purpose, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		accountID, string(purpose), hashToken(raw), now.Add(ttl), now,
	)
	if err != nil {
		return "", fmt.Errorf("issue verification token: %w", err)
	}
	return raw, nil
}

// Consume burns the token and returns the account it belongs to. The
// used_at update is the single-use gate: the row is claimed atomically,
// so two concurrent consumes cannot both succeed.
func (s *Store) Consume(ctx context.Context, raw string, purpose Purpose) (string, error) {
	now := s.now().UTC()

	var (
		id        int64
		accountID string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id FROM verification_tokens
		WHERE token_hash = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?`,
		hashToken(raw), string(purpose), now,
	).Scan(&id, &accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("consume verification token: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE verification_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL`, now, id)
	if err != nil {
		return "", fmt.Errorf("consume verification token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if affected == 0 {
		return "", ErrInvalidToken
	}
	return accountID, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
