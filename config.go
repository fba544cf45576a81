package authcore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/harborgate/authcore/password"
)

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	Temp2FATTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

type SessionConfig struct {
	MaxPerAccount int
	TTL           time.Duration
	RememberMeTTL time.Duration
}

type TOTPConfig struct {
	Issuer           string
	Digits           int
	Period           uint
	Skew             uint
	BackupCodes      int
	BackupCodeLength int
}

type AlertConfig struct {
	BufferSize int
}

type VerificationConfig struct {
	EmailTokenTTL time.Duration
	ResetTokenTTL time.Duration
}

type Config struct {
	Token        TokenConfig
	Session      SessionConfig
	TOTP         TOTPConfig
	Password     password.Config
	Alert        AlertConfig
	Verification VerificationConfig
}

// DefaultConfig returns every knob except the signing secrets, which
// have no sane default and must come from the environment.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			Temp2FATTL: 5 * time.Minute,
			Issuer:     "authcore",
			Leeway:     30 * time.Second,
		},
		Session: SessionConfig{
			MaxPerAccount: 10,
			TTL:           7 * 24 * time.Hour,
			RememberMeTTL: 30 * 24 * time.Hour,
		},
		TOTP: TOTPConfig{
			Issuer:           "authcore",
			Digits:           6,
			Period:           30,
			Skew:             2,
			BackupCodes:      10,
			BackupCodeLength: 8,
		},
		Password: password.DefaultConfig(),
		Alert:    AlertConfig{BufferSize: 256},
		Verification: VerificationConfig{
			EmailTokenTTL: 24 * time.Hour,
			ResetTokenTTL: time.Hour,
		},
	}
}

func (c Config) Validate() error {
	if len(c.Token.AccessSecret) < 32 || len(c.Token.RefreshSecret) < 32 {
		return errors.New("config: token secrets must be at least 32 bytes")
	}
	if c.Token.AccessSecret == c.Token.RefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("config: access TTL must be positive")
	}
	if c.Session.MaxPerAccount <= 0 {
		return errors.New("config: session cap must be positive")
	}
	if c.Session.TTL <= 0 || c.Session.RememberMeTTL < c.Session.TTL {
		return errors.New("config: session TTLs must be positive and remember-me >= base")
	}
	if c.TOTP.Period == 0 || c.TOTP.Digits < 6 {
		return errors.New("config: totp period and digits required")
	}
	return nil
}

// FromEnv builds a Config from environment variables on top of the
// defaults. Only AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET are
// mandatory; everything else falls back.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.Token.AccessSecret = os.Getenv("AUTH_ACCESS_SECRET")
	cfg.Token.RefreshSecret = os.Getenv("AUTH_REFRESH_SECRET")

	var err error
	if cfg.Token.AccessTTL, err = envDuration("AUTH_ACCESS_TTL", cfg.Token.AccessTTL); err != nil {
		return cfg, err
	}
	if cfg.Token.Temp2FATTL, err = envDuration("AUTH_TEMP_2FA_TTL", cfg.Token.Temp2FATTL); err != nil {
		return cfg, err
	}
	if v := os.Getenv("AUTH_ISSUER"); v != "" {
		cfg.Token.Issuer = v
		cfg.TOTP.Issuer = v
	}
	if v := os.Getenv("AUTH_AUDIENCE"); v != "" {
		cfg.Token.Audience = v
	}
	if cfg.Session.TTL, err = envDuration("AUTH_SESSION_TTL", cfg.Session.TTL); err != nil {
		return cfg, err
	}
	if cfg.Session.RememberMeTTL, err = envDuration("AUTH_SESSION_REMEMBER_TTL", cfg.Session.RememberMeTTL); err != nil {
		return cfg, err
	}
	if cfg.Session.MaxPerAccount, err = envInt("AUTH_MAX_SESSIONS", cfg.Session.MaxPerAccount); err != nil {
		return cfg, err
	}
	if cfg.Alert.BufferSize, err = envInt("AUTH_ALERT_BUFFER", cfg.Alert.BufferSize); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
