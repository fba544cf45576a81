package authcore

import (
	"context"
	"errors"

	"github.com/harborgate/authcore/alert"
	"github.com/harborgate/authcore/totp"
)

const (
	audit2FASetup      = "auth.2fa.setup"
	audit2FAEnable     = "auth.2fa.enable"
	audit2FADisable    = "auth.2fa.disable"
	audit2FAVerify     = "auth.2fa.verify"
	audit2FARegenerate = "auth.2fa.regenerate"
)

// SetupSecondFactor provisions a pending credential for the account and
// returns the secret, otpauth URI, and backup codes exactly once.
func (s *Service) SetupSecondFactor(ctx context.Context, accountID string) (*totp.Provision, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	prov, err := s.second.Setup(ctx, accountID, acct.Email)
	if err != nil {
		return nil, err
	}
	s.emitAudit(ctx, audit2FASetup, accountID, "", true, "")
	return prov, nil
}

// EnableSecondFactor confirms the pending credential with a live TOTP
// code. Enabling 2FA is a security event: every other session of the
// account is revoked, keeping only currentSessionID alive.
func (s *Service) EnableSecondFactor(ctx context.Context, accountID, code, currentSessionID string) error {
	if err := s.second.Enable(ctx, accountID, code); err != nil {
		if errors.Is(err, totp.ErrInvalidCode) {
			s.emitAudit(ctx, audit2FAEnable, accountID, "", false, "invalid_code")
			return ErrInvalidSecondFactorCode
		}
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, accountID, currentSessionID, s.now()); err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("session sweep after 2fa enable failed")
	}

	s.emitAudit(ctx, audit2FAEnable, accountID, currentSessionID, true, "")
	return nil
}

// DisableSecondFactor turns enforcement off. A TOTP code or a remaining
// backup code authorizes the change.
func (s *Service) DisableSecondFactor(ctx context.Context, accountID, code string) error {
	if err := s.second.Disable(ctx, accountID, code); err != nil {
		switch {
		case errors.Is(err, totp.ErrInvalidCode):
			s.emitAudit(ctx, audit2FADisable, accountID, "", false, "invalid_code")
			return ErrInvalidSecondFactorCode
		case errors.Is(err, totp.ErrNotConfigured):
			return ErrSecondFactorRequired
		default:
			return err
		}
	}

	s.alerts.Emit(alert.Event{
		Kind:      alert.KindSecondFactorOff,
		AccountID: accountID,
		IP:        ctxString(ctx, ctxKeyClientIP),
	})
	s.emitAudit(ctx, audit2FADisable, accountID, "", true, "")
	return nil
}

// VerifySecondFactor consumes a code outside the login flow, e.g. to
// gate a sensitive operation.
func (s *Service) VerifySecondFactor(ctx context.Context, accountID, code string) (*SecondFactorResult, error) {
	result, err := s.consumeSecondFactor(ctx, accountID, code)
	if err != nil {
		s.metrics.Inc(MetricSecondFactorFailure)
		s.emitAudit(ctx, audit2FAVerify, accountID, "", false, "invalid_code")
		return nil, err
	}

	s.metrics.Inc(MetricSecondFactorSuccess)
	if result.Method == totp.MethodBackup {
		s.metrics.Inc(MetricBackupCodeUsed)
	}
	s.emitAudit(ctx, audit2FAVerify, accountID, "", true, result.Method)
	return &SecondFactorResult{
		Method:               result.Method,
		RemainingBackupCodes: result.RemainingBackupCodes,
	}, nil
}

// RegenerateBackupCodes replaces the whole backup set. Only a live TOTP
// code authorizes this; backup codes cannot mint more backup codes.
func (s *Service) RegenerateBackupCodes(ctx context.Context, accountID, code string) ([]string, error) {
	codes, err := s.second.Regenerate(ctx, accountID, code)
	if err != nil {
		switch {
		case errors.Is(err, totp.ErrInvalidCode):
			s.emitAudit(ctx, audit2FARegenerate, accountID, "", false, "invalid_code")
			return nil, ErrInvalidSecondFactorCode
		case errors.Is(err, totp.ErrNotConfigured):
			return nil, ErrSecondFactorRequired
		default:
			return nil, err
		}
	}

	s.emitAudit(ctx, audit2FARegenerate, accountID, "", true, "")
	return codes, nil
}

// SecondFactorStatus reports whether 2FA is enabled and how many backup
// codes remain.
func (s *Service) SecondFactorStatus(ctx context.Context, accountID string) (bool, int, error) {
	return s.second.Status(ctx, accountID)
}
