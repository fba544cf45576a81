// Package token issues and verifies the three JWT kinds used by the
// authentication core: short-lived access tokens, session-bound refresh
// tokens, and single-purpose 2FA challenge tokens. Access and refresh
// tokens are signed with independent secrets so one kind can never be
// verified as the other.
package token

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kind discriminator carried in the "knd" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
	KindTemp2FA = "2fa"
)

var (
	ErrExpired              = errors.New("token expired")
	ErrMalformed            = errors.New("token malformed")
	ErrWrongKind            = errors.New("wrong token kind")
	ErrRevoked              = errors.New("token revoked")
	ErrBlacklistUnavailable = errors.New("revocation backend unavailable")
)

// Claims is the claim set for every token the manager signs. Kind tells
// the verifier which secret and lifetime rules apply; SessionID binds
// access and refresh tokens to their originating session.
type Claims struct {
	AccountID string `json:"uid"`
	DeviceID  string `json:"did,omitempty"`
	SessionID string `json:"sid,omitempty"`
	Kind      string `json:"knd"`
	Temp2FA   bool   `json:"t2f,omitempty"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	Temp2FATTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Pair is the result of issuing an access/refresh token pair.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessTTL        time.Duration
	RefreshJTI       string
	RefreshExpiresAt time.Time
}

// Manager signs and parses tokens. It is immutable after construction
// and safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) < 32 || len(cfg.RefreshSecret) < 32 {
		return nil, errors.New("token: signing secrets must be at least 32 bytes")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("token: access TTL must be positive")
	}
	if cfg.Temp2FATTL <= 0 {
		cfg.Temp2FATTL = 5 * time.Minute
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway")
	}
	return &Manager{config: cfg, now: time.Now}, nil
}

// IssuePair mints an access token and a refresh token for the given
// session. The refresh token expires with the session; the access token
// uses the configured short TTL. Both carry a fresh jti so either can be
// blacklisted individually.
func (m *Manager) IssuePair(accountID, deviceID, sessionID string, refreshTTL time.Duration) (Pair, error) {
	if refreshTTL <= 0 {
		return Pair{}, errors.New("token: refresh TTL must be positive")
	}

	access, _, err := m.sign(KindAccess, accountID, deviceID, sessionID, m.config.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, jti, err := m.sign(KindRefresh, accountID, deviceID, sessionID, refreshTTL)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessTTL:        m.config.AccessTTL,
		RefreshJTI:       jti,
		RefreshExpiresAt: m.now().Add(refreshTTL),
	}, nil
}

// IssueAccess mints a standalone access token for an already established
// session, as used by the refresh flow.
func (m *Manager) IssueAccess(accountID, deviceID, sessionID string) (string, time.Duration, error) {
	access, _, err := m.sign(KindAccess, accountID, deviceID, sessionID, m.config.AccessTTL)
	return access, m.config.AccessTTL, err
}

// IssueTemp2FA mints the short-lived challenge token returned when a
// login needs a second factor. It carries no session and cannot pass
// access or refresh verification.
func (m *Manager) IssueTemp2FA(accountID string) (string, time.Duration, error) {
	tok, _, err := m.sign(KindTemp2FA, accountID, "", "", m.config.Temp2FATTL)
	return tok, m.config.Temp2FATTL, err
}

func (m *Manager) VerifyAccess(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, KindAccess, m.config.AccessSecret, m.config.RefreshSecret)
}

func (m *Manager) VerifyRefresh(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, KindRefresh, m.config.RefreshSecret, m.config.AccessSecret)
}

func (m *Manager) VerifyTemp2FA(tokenStr string) (*Claims, error) {
	claims, err := m.verify(tokenStr, KindTemp2FA, m.config.AccessSecret, m.config.RefreshSecret)
	if err != nil {
		return nil, err
	}
	if !claims.Temp2FA {
		return nil, ErrWrongKind
	}
	return claims, nil
}

func (m *Manager) sign(kind, accountID, deviceID, sessionID string, ttl time.Duration) (string, string, error) {
	now := m.now()
	jti := uuid.NewString()

	claims := Claims{
		AccountID: accountID,
		DeviceID:  deviceID,
		SessionID: sessionID,
		Kind:      kind,
		Temp2FA:   kind == KindTemp2FA,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	secret := m.config.AccessSecret
	if kind == KindRefresh {
		secret = m.config.RefreshSecret
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// verify parses tokenStr against the secret for wantKind. A token of the
// other kind fails its signature check here since the secrets differ, so
// a second parse against otherSecret distinguishes "signed by us, wrong
// kind" from garbage.
func (m *Manager) verify(tokenStr, wantKind string, secret, otherSecret []byte) (*Claims, error) {
	parser := jwt.NewParser(m.parserOptions()...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			if _, crossErr := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
				return otherSecret, nil
			}); crossErr == nil || errors.Is(crossErr, jwt.ErrTokenExpired) {
				return nil, ErrWrongKind
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind != wantKind {
		return nil, ErrWrongKind
	}
	if claims.AccountID == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (m *Manager) parserOptions() []jwt.ParserOption {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}
	return options
}
