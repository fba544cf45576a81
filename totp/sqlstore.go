package totp

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// SQLStore persists credentials in the second_factor_credentials table.
// Backup hashes are stored as a JSON array of hex digests; the plain
// codes never reach the database.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context, accountID string) (*Credential, error) {
	query := `SELECT account_id, secret, backup_hashes, enabled, enabled_at, created_at, updated_at
		FROM second_factor_credentials WHERE account_id = ?`

	var (
		cred      Credential
		rawHashes []byte
		enabledAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(
		&cred.AccountID, &cred.Secret, &rawHashes, &cred.Enabled,
		&enabledAt, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("get second factor credential: %w", err)
	}

	if enabledAt.Valid {
		t := enabledAt.Time
		cred.EnabledAt = &t
	}
	cred.BackupHashes, err = decodeHashes(rawHashes)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *SQLStore) Upsert(ctx context.Context, cred *Credential) error {
	rawHashes, err := encodeHashes(cred.BackupHashes)
	if err != nil {
		return err
	}

	query := `INSERT INTO second_factor_credentials
		(account_id, secret, backup_hashes, enabled, enabled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		secret = VALUES(secret), backup_hashes = VALUES(backup_hashes),
		enabled = VALUES(enabled), enabled_at = VALUES(enabled_at),
		updated_at = VALUES(updated_at)`

	var enabledAt any
	if cred.EnabledAt != nil {
		enabledAt = cred.EnabledAt.UTC()
	}
	_, err = s.db.ExecContext(ctx, query,
		cred.AccountID, cred.Secret, rawHashes, cred.Enabled, enabledAt,
		cred.CreatedAt.UTC(), cred.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert second factor credential: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM second_factor_credentials WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("delete second factor credential: %w", err)
	}
	return nil
}

func encodeHashes(hashes [][32]byte) ([]byte, error) {
	hexed := make([]string, len(hashes))
	for i, h := range hashes {
		hexed[i] = hex.EncodeToString(h[:])
	}
	return json.Marshal(hexed)
}

func decodeHashes(raw []byte) ([][32]byte, error) {
	var hexed []string
	if err := json.Unmarshal(raw, &hexed); err != nil {
		return nil, fmt.Errorf("decode backup hashes: %w", err)
	}
	hashes := make([][32]byte, 0, len(hexed))
	for _, h := range hexed {
		b, err := hex.DecodeString(h)
		if err != nil || len(b) != 32 {
			return nil, errors.New("decode backup hashes: bad digest")
		}
		var out [32]byte
		copy(out[:], b)
		hashes = append(hashes, out)
	}
	return hashes, nil
}
