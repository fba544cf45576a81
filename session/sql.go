package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore is the MySQL-backed DurableStore over the sessions table.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const sessionColumns = `id, account_id, device_id, device_name, platform, ip, user_agent,
	refresh_hash, remember_me, created_at, last_active_at, expires_at, revoked_at`

func (s *SQLStore) Insert(ctx context.Context, sess *Session) error {
	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.AccountID, sess.DeviceID, sess.DeviceName, sess.Platform,
		sess.IP, sess.UserAgent, sess.RefreshHash[:], sess.RememberMe,
		sess.CreatedAt.UTC(), sess.LastActiveAt.UTC(), sess.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

func (s *SQLStore) ListActive(ctx context.Context, accountID string, now time.Time) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE account_id = ? AND revoked_at IS NULL AND expires_at > ?
		ORDER BY last_active_at DESC`
	return s.list(ctx, query, accountID, now.UTC())
}

func (s *SQLStore) ListCreatedSince(ctx context.Context, accountID string, since time.Time) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE account_id = ? AND created_at >= ?
		ORDER BY created_at DESC`
	return s.list(ctx, query, accountID, since.UTC())
}

func (s *SQLStore) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *SQLStore) Revoke(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) RevokeAll(ctx context.Context, accountID, exceptID string, at time.Time) (int, error) {
	query := `UPDATE sessions SET revoked_at = ?
		WHERE account_id = ? AND revoked_at IS NULL AND expires_at > ? AND id <> ?`

	res, err := s.db.ExecContext(ctx, query, at.UTC(), accountID, at.UTC(), exceptID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *SQLStore) list(ctx context.Context, query string, args ...any) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess    Session
		hash    []byte
		revoked sql.NullTime
	)
	err := row.Scan(
		&sess.ID, &sess.AccountID, &sess.DeviceID, &sess.DeviceName, &sess.Platform,
		&sess.IP, &sess.UserAgent, &hash, &sess.RememberMe,
		&sess.CreatedAt, &sess.LastActiveAt, &sess.ExpiresAt, &revoked,
	)
	if err != nil {
		return nil, err
	}
	copy(sess.RefreshHash[:], hash)
	if revoked.Valid {
		t := revoked.Time
		sess.RevokedAt = &t
	}
	return &sess, nil
}
