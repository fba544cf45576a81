package authcore

import (
	"context"
	"time"

	"github.com/harborgate/authcore/verification"
)

// AccountStatus is the account lifecycle state. Only active accounts
// can log in.
type AccountStatus string

const (
	StatusPending     AccountStatus = "pending"
	StatusActive      AccountStatus = "active"
	StatusSuspended   AccountStatus = "suspended"
	StatusBanned      AccountStatus = "banned"
	StatusDeactivated AccountStatus = "deactivated"
)

// Account is the minimal view of an account the auth core needs. The
// full account record lives with the account service behind
// AccountProvider.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	Status        AccountStatus
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Loginable reports whether the account may establish sessions.
func (a *Account) Loginable() bool {
	return a.Status == StatusActive
}

// AccountProvider is the account service contract. Lookups return
// ErrAccountNotFound when no account matches.
type AccountProvider interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	UpdateStatus(ctx context.Context, id string, status AccountStatus) error
	MarkEmailVerified(ctx context.Context, id string) error
}

// VerificationStore issues and consumes single-use verification tokens.
// Implemented by verification.Store (MySQL) and verification.MemoryStore.
type VerificationStore interface {
	Issue(ctx context.Context, accountID string, purpose verification.Purpose, ttl time.Duration) (string, error)
	Consume(ctx context.Context, raw string, purpose verification.Purpose) (string, error)
}

// TokenGrant is a full token pair for an established session.
type TokenGrant struct {
	AccessToken      string
	RefreshToken     string
	AccessTTL        time.Duration
	SessionID        string
	RefreshExpiresAt time.Time
}

// AccessGrant is a refreshed access token for an existing session.
type AccessGrant struct {
	AccessToken string
	AccessTTL   time.Duration
}

// SecondFactorChallenge tells the caller to come back with a code.
type SecondFactorChallenge struct {
	TempToken string
	ExpiresIn time.Duration
	Methods   []string
}

// LoginOutcome is a tagged result: exactly one of Tokens or Challenge
// is non-nil. A challenge means credentials were correct but the login
// is parked until a second-factor code arrives.
type LoginOutcome struct {
	Tokens    *TokenGrant
	Challenge *SecondFactorChallenge
}

// SecondFactorResult reports how a code verified and how many backup
// codes the account has left.
type SecondFactorResult struct {
	Method               string
	RemainingBackupCodes int
}

// Identity is the result of validating an access token.
type Identity struct {
	AccountID string
	DeviceID  string
	SessionID string
	ExpiresAt time.Time
}
