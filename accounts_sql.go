package authcore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const accountColumns = "id, email, password_hash, status, email_verified, created_at, updated_at"

// SQLAccounts is an AccountProvider backed by the accounts table. Teams
// that keep accounts in a separate service plug their own provider into
// the Builder instead.
type SQLAccounts struct {
	db *sql.DB
}

func NewSQLAccounts(db *sql.DB) *SQLAccounts {
	return &SQLAccounts{db: db}
}

func (s *SQLAccounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = ?", email)
	return scanAccount(row)
}

func (s *SQLAccounts) GetByID(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	return scanAccount(row)
}

func (s *SQLAccounts) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.exec(ctx,
		"UPDATE accounts SET password_hash = ?, updated_at = UTC_TIMESTAMP(3) WHERE id = ?",
		hash, id)
}

func (s *SQLAccounts) UpdateStatus(ctx context.Context, id string, status AccountStatus) error {
	return s.exec(ctx,
		"UPDATE accounts SET status = ?, updated_at = UTC_TIMESTAMP(3) WHERE id = ?",
		string(status), id)
}

func (s *SQLAccounts) MarkEmailVerified(ctx context.Context, id string) error {
	return s.exec(ctx,
		"UPDATE accounts SET email_verified = 1, updated_at = UTC_TIMESTAMP(3) WHERE id = ?",
		id)
}

func (s *SQLAccounts) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("accounts: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Status,
		&a.EmailVerified, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	return &a, nil
}
