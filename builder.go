package authcore

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/harborgate/authcore/alert"
	"github.com/harborgate/authcore/password"
	"github.com/harborgate/authcore/session"
	"github.com/harborgate/authcore/token"
	"github.com/harborgate/authcore/totp"
	"github.com/harborgate/authcore/verification"
)

// Builder assembles a Service. Redis and an AccountProvider are
// mandatory; durable stores come either from a *sql.DB or from explicit
// store implementations (tests use the in-memory ones).
type Builder struct {
	cfg Config
	log zerolog.Logger

	redis       redis.UniversalClient
	db          *sql.DB
	accounts    AccountProvider
	durable     session.DurableStore
	credentials totp.CredentialStore
	verify      VerificationStore
	notifier    alert.Notifier
	auditSink   AuditSink
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, log: zerolog.Nop()}
}

func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.log = log
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDB supplies the MySQL handle used for sessions, second-factor
// credentials, and verification tokens unless explicit stores override.
func (b *Builder) WithDB(db *sql.DB) *Builder {
	b.db = db
	return b
}

func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.accounts = p
	return b
}

func (b *Builder) WithSessionStore(s session.DurableStore) *Builder {
	b.durable = s
	return b
}

func (b *Builder) WithCredentialStore(s totp.CredentialStore) *Builder {
	b.credentials = s
	return b
}

func (b *Builder) WithVerificationStore(s VerificationStore) *Builder {
	b.verify = s
	return b
}

func (b *Builder) WithNotifier(n alert.Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(s AuditSink) *Builder {
	b.auditSink = s
	return b
}

func (b *Builder) Build() (*Service, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("authcore: account provider is required")
	}
	if b.redis == nil {
		return nil, errors.New("authcore: redis client is required")
	}

	durable := b.durable
	if durable == nil {
		if b.db == nil {
			return nil, errors.New("authcore: session store or database handle is required")
		}
		durable = session.NewSQLStore(b.db)
	}
	credentials := b.credentials
	if credentials == nil {
		if b.db == nil {
			return nil, errors.New("authcore: credential store or database handle is required")
		}
		credentials = totp.NewSQLStore(b.db)
	}
	verify := b.verify
	if verify == nil && b.db != nil {
		verify = verification.NewStore(b.db)
	}

	hasher, err := password.NewHasher(b.cfg.Password)
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewManager(token.Config{
		AccessSecret:  []byte(b.cfg.Token.AccessSecret),
		RefreshSecret: []byte(b.cfg.Token.RefreshSecret),
		AccessTTL:     b.cfg.Token.AccessTTL,
		Temp2FATTL:    b.cfg.Token.Temp2FATTL,
		Issuer:        b.cfg.Token.Issuer,
		Audience:      b.cfg.Token.Audience,
		Leeway:        b.cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore(durable, session.NewCache(b.redis), session.StoreConfig{
		MaxSessions:   b.cfg.Session.MaxPerAccount,
		TTL:           b.cfg.Session.TTL,
		RememberMeTTL: b.cfg.Session.RememberMeTTL,
	}, b.log)

	second := totp.NewEngine(credentials, totp.Config{
		Issuer:           b.cfg.TOTP.Issuer,
		Digits:           b.cfg.TOTP.Digits,
		Period:           b.cfg.TOTP.Period,
		Skew:             b.cfg.TOTP.Skew,
		BackupCodes:      b.cfg.TOTP.BackupCodes,
		BackupCodeLength: b.cfg.TOTP.BackupCodeLength,
	})

	notifier := b.notifier
	if notifier == nil {
		notifier = alert.NoopNotifier{}
	}
	alertLog := b.log
	alerts := alert.NewDispatcher(notifier, b.cfg.Alert.BufferSize, func(err error) {
		alertLog.Warn().Err(err).Msg("alert delivery failed")
	})

	sink := b.auditSink
	if sink == nil {
		sink = NewLogSink(b.log)
	}

	// Unknown-account logins verify against this hash so lookup misses
	// cost the same as password mismatches.
	dummyHash, err := hasher.Hash(uuid.NewString() + uuid.NewString())
	if err != nil {
		alerts.Close()
		return nil, err
	}

	return &Service{
		cfg:       b.cfg,
		log:       b.log,
		accounts:  b.accounts,
		hasher:    hasher,
		tokens:    tokens,
		blacklist: token.NewBlacklist(b.redis),
		sessions:  sessions,
		second:    second,
		verify:    verify,
		alerts:    alerts,
		audit:     newAuditDispatcher(sink, b.cfg.Alert.BufferSize),
		metrics:   NewMetrics(),
		dummyHash: dummyHash,
		now:       timeNow,
	}, nil
}
