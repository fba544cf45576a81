package authcore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/harborgate/authcore/alert"
	"github.com/harborgate/authcore/risk"
	"github.com/harborgate/authcore/totp"
)

const (
	auditLogin        = "auth.login"
	auditSecondFactor = "auth.login.2fa"

	backupCodesLowWater = 2
)

// Login runs the credential phase of the state machine. The outcome is
// either a full token grant or a second-factor challenge. Unknown
// email, wrong password, and non-loginable accounts all fail with
// ErrInvalidCredentials and the same work performed, so the caller
// learns nothing about which it was.
func (s *Service) Login(ctx context.Context, email, passwd string, rememberMe bool) (*LoginOutcome, error) {
	email = normalizeEmail(email)

	fail := func(accountID, reason string) (*LoginOutcome, error) {
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, auditLogin, accountID, "", false, reason)
		return nil, ErrInvalidCredentials
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Burn a hash verification so the miss costs the same as a
			// wrong password.
			_, _ = s.hasher.Verify(passwd, s.dummyHash)
			return fail("", "unknown_account")
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(passwd, acct.PasswordHash)
	if err != nil {
		return fail(acct.ID, "unreadable_password_hash")
	}
	if !ok {
		return fail(acct.ID, "wrong_password")
	}
	if !acct.Loginable() {
		return fail(acct.ID, "account_status_"+string(acct.Status))
	}

	s.maybeRehash(ctx, acct, passwd)

	enabled, _, err := s.second.Status(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	if enabled {
		temp, ttl, err := s.tokens.IssueTemp2FA(acct.ID)
		if err != nil {
			return nil, err
		}
		s.metrics.Inc(MetricLoginChallenge)
		s.emitAudit(ctx, auditLogin, acct.ID, "", true, "second_factor_required")
		return &LoginOutcome{Challenge: &SecondFactorChallenge{
			TempToken: temp,
			ExpiresIn: ttl,
			Methods:   []string{totp.MethodTOTP, totp.MethodBackup},
		}}, nil
	}

	grant, err := s.establishSession(ctx, acct.ID, rememberMe)
	if err != nil {
		return nil, err
	}
	s.metrics.Inc(MetricLoginSuccess)
	s.emitAudit(ctx, auditLogin, acct.ID, grant.SessionID, true, "")
	return &LoginOutcome{Tokens: grant}, nil
}

// CompleteSecondFactorLogin finishes a parked login with the temp token
// from the challenge and a TOTP or backup code.
func (s *Service) CompleteSecondFactorLogin(ctx context.Context, tempToken, code string, rememberMe bool) (*TokenGrant, error) {
	claims, err := s.tokens.VerifyTemp2FA(tempToken)
	if err != nil {
		s.metrics.Inc(MetricSecondFactorFailure)
		s.emitAudit(ctx, auditSecondFactor, "", "", false, "bad_temp_token")
		return nil, ErrSecondFactorRequired
	}

	// A completed challenge blacklists its jti; a replayed temp token
	// must not park a second login. Fail closed on a backend outage.
	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if revoked {
		reason := "temp_token_reused"
		if err != nil {
			reason = "blacklist_unavailable"
			s.log.Error().Err(err).Msg("2fa login denied, revocation check unavailable")
		}
		s.metrics.Inc(MetricSecondFactorFailure)
		s.emitAudit(ctx, auditSecondFactor, claims.AccountID, "", false, reason)
		return nil, ErrSecondFactorRequired
	}

	acct, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !acct.Loginable() {
		s.emitAudit(ctx, auditSecondFactor, acct.ID, "", false, "account_status_"+string(acct.Status))
		return nil, ErrAccountNotLoginable
	}

	result, err := s.consumeSecondFactor(ctx, acct.ID, code)
	if err != nil {
		s.metrics.Inc(MetricSecondFactorFailure)
		s.emitAudit(ctx, auditSecondFactor, acct.ID, "", false, "invalid_code")
		return nil, err
	}

	// The challenge token is single use.
	if err := s.blacklist.Revoke(ctx, claims); err != nil {
		s.log.Warn().Err(err).Msg("temp token revocation failed")
	}

	grant, err := s.establishSession(ctx, acct.ID, rememberMe)
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(MetricSecondFactorSuccess)
	s.metrics.Inc(MetricLoginSuccess)
	s.emitAudit(ctx, auditSecondFactor, acct.ID, grant.SessionID, true, result.Method)

	if result.Method == totp.MethodBackup {
		s.metrics.Inc(MetricBackupCodeUsed)
		if result.RemainingBackupCodes <= backupCodesLowWater {
			s.alerts.Emit(alert.Event{
				Kind:      alert.KindBackupCodesLow,
				AccountID: acct.ID,
				IP:        ctxString(ctx, ctxKeyClientIP),
				Detail:    map[string]string{"remaining": strconv.Itoa(result.RemainingBackupCodes)},
			})
		}
	}
	return grant, nil
}

// LoginWithSecondFactor is the one-shot form: credentials and code in a
// single call. Accounts without 2FA get their tokens directly and the
// code is ignored.
func (s *Service) LoginWithSecondFactor(ctx context.Context, email, passwd, code string, rememberMe bool) (*TokenGrant, error) {
	outcome, err := s.Login(ctx, email, passwd, rememberMe)
	if err != nil {
		return nil, err
	}
	if outcome.Tokens != nil {
		return outcome.Tokens, nil
	}
	return s.CompleteSecondFactorLogin(ctx, outcome.Challenge.TempToken, code, rememberMe)
}

func (s *Service) consumeSecondFactor(ctx context.Context, accountID, code string) (*totp.Result, error) {
	result, err := s.second.Consume(ctx, accountID, code)
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, totp.ErrBackupCodesExhausted):
		return nil, ErrBackupCodeExhausted
	case errors.Is(err, totp.ErrInvalidCode), errors.Is(err, totp.ErrNotConfigured):
		return nil, ErrInvalidSecondFactorCode
	default:
		return nil, err
	}
}

// establishSession is the SessionEstablished transition: a session ID
// is minted first so the token pair and the session record agree on it.
func (s *Service) establishSession(ctx context.Context, accountID string, rememberMe bool) (*TokenGrant, error) {
	dev := s.deviceFromContext(ctx)
	sessionID := uuid.NewString()

	pair, err := s.tokens.IssuePair(accountID, dev.DeviceID, sessionID, s.sessions.Lifetime(rememberMe))
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.Create(ctx, sessionID, accountID, dev, pair.RefreshToken, rememberMe, s.now()); err != nil {
		return nil, err
	}
	s.metrics.Inc(MetricSessionCreated)

	go s.scoreRecentActivity(accountID, sessionID, dev.IP)

	return &TokenGrant{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessTTL:        pair.AccessTTL,
		SessionID:        sessionID,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}, nil
}

// scoreRecentActivity runs after the login response is already on its
// way. Failures are logged and swallowed; scoring can never fail a
// login.
func (s *Service) scoreRecentActivity(accountID, sessionID, ip string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	recent, err := s.sessions.CreatedSince(ctx, accountID, s.now().Add(-risk.Window))
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("activity scoring skipped")
		return
	}

	report := risk.Assess(recent, s.now())
	if !report.Flagged() {
		return
	}

	s.metrics.Inc(MetricAlertEmitted)
	s.alerts.Emit(alert.Event{
		Kind:      alert.KindSuspiciousLogin,
		AccountID: accountID,
		SessionID: sessionID,
		RiskLevel: string(report.Level),
		Flags:     report.Flags,
		IP:        ip,
	})
	s.audit.emit(AuditEvent{
		Name:      "auth.risk.flagged",
		AccountID: accountID,
		SessionID: sessionID,
		IP:        ip,
		Success:   true,
		Reason:    string(report.Level),
		At:        s.now().UTC(),
	})
}

// maybeRehash upgrades the stored hash after a successful verification
// when cost parameters have been raised since it was written.
func (s *Service) maybeRehash(ctx context.Context, acct *Account, passwd string) {
	needs, err := s.hasher.NeedsRehash(acct.PasswordHash)
	if err != nil || !needs {
		return
	}
	fresh, err := s.hasher.Hash(passwd)
	if err != nil {
		return
	}
	if err := s.accounts.UpdatePasswordHash(ctx, acct.ID, fresh); err != nil {
		s.log.Warn().Err(err).Str("account_id", acct.ID).Msg("password rehash not persisted")
	}
}
