// Package totp implements the second-factor engine: RFC 6238 TOTP
// verification with a bounded clock-skew window, and single-use backup
// codes stored as SHA-256 hashes and consumed by removal.
package totp

import (
	"context"
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	ErrNotConfigured        = errors.New("second factor not configured")
	ErrAlreadyEnabled       = errors.New("second factor already enabled")
	ErrInvalidCode          = errors.New("invalid second factor code")
	ErrBackupCodesExhausted = errors.New("backup codes exhausted")
	ErrBackendUnavailable   = errors.New("second factor backend unavailable")
)

// Verification methods reported by Consume.
const (
	MethodTOTP   = "totp"
	MethodBackup = "backup_code"
)

// Credential is one account's second-factor material. A credential
// exists in pending state between Setup and Enable; only an enabled
// credential gates login.
type Credential struct {
	AccountID    string
	Secret       string
	BackupHashes [][32]byte
	Enabled      bool
	EnabledAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CredentialStore persists second-factor credentials. Get returns
// ErrNotConfigured when the account has none.
type CredentialStore interface {
	Get(ctx context.Context, accountID string) (*Credential, error)
	Upsert(ctx context.Context, cred *Credential) error
	Delete(ctx context.Context, accountID string) error
}

type Config struct {
	Issuer           string
	Digits           int
	Period           uint
	Skew             uint
	BackupCodes      int
	BackupCodeLength int
}

// Provision is handed to the client once, at setup time. The secret and
// backup codes are never readable again afterwards.
type Provision struct {
	Secret      string
	URI         string
	BackupCodes []string
}

// Result describes a successful code consumption.
type Result struct {
	Method               string
	RemainingBackupCodes int
}

// Engine drives the second-factor lifecycle over a CredentialStore.
type Engine struct {
	store CredentialStore
	cfg   Config
	now   func() time.Time
}

func NewEngine(store CredentialStore, cfg Config) *Engine {
	if cfg.Issuer == "" {
		cfg.Issuer = "authcore"
	}
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Skew == 0 {
		cfg.Skew = 2
	}
	if cfg.BackupCodes <= 0 {
		cfg.BackupCodes = 10
	}
	if cfg.BackupCodeLength <= 0 {
		cfg.BackupCodeLength = 8
	}
	return &Engine{store: store, cfg: cfg, now: time.Now}
}

// Setup provisions a pending credential: fresh secret, fresh backup
// codes. Re-running setup before Enable replaces the pending material;
// running it on an enabled credential fails.
func (e *Engine) Setup(ctx context.Context, accountID, accountName string) (*Provision, error) {
	existing, err := e.store.Get(ctx, accountID)
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		return nil, err
	}
	if existing != nil && existing.Enabled {
		return nil, ErrAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.cfg.Issuer,
		AccountName: accountName,
		SecretSize:  20,
		Digits:      otp.Digits(e.cfg.Digits),
		Algorithm:   otp.AlgorithmSHA1,
		Period:      e.cfg.Period,
	})
	if err != nil {
		return nil, err
	}

	codes, err := newBackupCodes(e.cfg.BackupCodes, e.cfg.BackupCodeLength)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	cred := &Credential{
		AccountID:    accountID,
		Secret:       key.Secret(),
		BackupHashes: hashBackupCodes(codes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.Upsert(ctx, cred); err != nil {
		return nil, err
	}

	return &Provision{Secret: key.Secret(), URI: key.URL(), BackupCodes: codes}, nil
}

// Enable confirms the pending credential with a live TOTP code and turns
// enforcement on.
func (e *Engine) Enable(ctx context.Context, accountID, code string) error {
	cred, err := e.store.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if cred.Enabled {
		return ErrAlreadyEnabled
	}
	if !e.verifyTOTP(cred.Secret, code) {
		return ErrInvalidCode
	}

	now := e.now().UTC()
	cred.Enabled = true
	cred.EnabledAt = &now
	cred.UpdatedAt = now
	return e.store.Upsert(ctx, cred)
}

// Disable removes the credential entirely. It accepts a TOTP code or a
// remaining backup code, so a lost authenticator does not lock the
// account into 2FA forever.
func (e *Engine) Disable(ctx context.Context, accountID, code string) error {
	cred, err := e.store.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if !cred.Enabled {
		return ErrNotConfigured
	}
	if !e.verifyTOTP(cred.Secret, code) {
		if _, ok := consumeBackupCode(cred, code); !ok {
			return ErrInvalidCode
		}
	}
	return e.store.Delete(ctx, accountID)
}

// Consume verifies a login-time code against an enabled credential.
// TOTP is tried first; on miss the code is matched against the backup
// set in constant time and, if found, removed before the result is
// persisted. Each backup code therefore works exactly once.
func (e *Engine) Consume(ctx context.Context, accountID, code string) (*Result, error) {
	cred, err := e.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !cred.Enabled {
		return nil, ErrNotConfigured
	}

	if e.verifyTOTP(cred.Secret, code) {
		return &Result{Method: MethodTOTP, RemainingBackupCodes: len(cred.BackupHashes)}, nil
	}

	if len(cred.BackupHashes) == 0 && looksLikeBackupCode(code, e.cfg.BackupCodeLength) {
		return nil, ErrBackupCodesExhausted
	}

	remaining, ok := consumeBackupCode(cred, code)
	if !ok {
		return nil, ErrInvalidCode
	}
	cred.UpdatedAt = e.now().UTC()
	if err := e.store.Upsert(ctx, cred); err != nil {
		return nil, err
	}
	return &Result{Method: MethodBackup, RemainingBackupCodes: remaining}, nil
}

// Regenerate replaces the whole backup-code set. It requires a live TOTP
// code; a backup code cannot mint more backup codes.
func (e *Engine) Regenerate(ctx context.Context, accountID, code string) ([]string, error) {
	cred, err := e.store.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !cred.Enabled {
		return nil, ErrNotConfigured
	}
	if !e.verifyTOTP(cred.Secret, code) {
		return nil, ErrInvalidCode
	}

	codes, err := newBackupCodes(e.cfg.BackupCodes, e.cfg.BackupCodeLength)
	if err != nil {
		return nil, err
	}
	cred.BackupHashes = hashBackupCodes(codes)
	cred.UpdatedAt = e.now().UTC()
	if err := e.store.Upsert(ctx, cred); err != nil {
		return nil, err
	}
	return codes, nil
}

// Status reports whether the account has an enabled credential and how
// many backup codes remain.
func (e *Engine) Status(ctx context.Context, accountID string) (enabled bool, remaining int, err error) {
	cred, err := e.store.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return cred.Enabled, len(cred.BackupHashes), nil
}

func (e *Engine) verifyTOTP(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, e.now().UTC(), totp.ValidateOpts{
		Period:    e.cfg.Period,
		Skew:      e.cfg.Skew,
		Digits:    otp.Digits(e.cfg.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
