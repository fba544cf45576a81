package authcore

import (
	"context"
	"errors"

	"github.com/harborgate/authcore/alert"
	"github.com/harborgate/authcore/verification"
)

const (
	auditEmailVerify   = "auth.email.verify"
	auditPasswordReset = "auth.password.reset"
)

// RequestEmailVerification issues a single-use email-verification token.
// Delivery is the caller's concern; the raw token appears only in this
// return value.
func (s *Service) RequestEmailVerification(ctx context.Context, accountID string) (string, error) {
	if s.verify == nil {
		return "", ErrNotReady
	}
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return "", err
	}
	return s.verify.Issue(ctx, accountID, verification.PurposeEmailVerify, s.cfg.Verification.EmailTokenTTL)
}

// ConfirmEmailVerification burns the token, marks the email verified,
// and promotes a pending account to active.
func (s *Service) ConfirmEmailVerification(ctx context.Context, rawToken string) error {
	if s.verify == nil {
		return ErrNotReady
	}

	accountID, err := s.verify.Consume(ctx, rawToken, verification.PurposeEmailVerify)
	if err != nil {
		s.emitAudit(ctx, auditEmailVerify, "", "", false, "invalid_token")
		return err
	}

	if err := s.accounts.MarkEmailVerified(ctx, accountID); err != nil {
		return err
	}
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.Status == StatusPending {
		if err := s.accounts.UpdateStatus(ctx, accountID, StatusActive); err != nil {
			return err
		}
	}

	s.emitAudit(ctx, auditEmailVerify, accountID, "", true, "")
	return nil
}

// RequestPasswordReset issues a reset token for the account behind
// email. For an unknown email it returns an empty token and no error,
// so the endpoint response is identical either way.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if s.verify == nil {
		return "", ErrNotReady
	}

	acct, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.emitAudit(ctx, auditPasswordReset, "", "", false, "unknown_account")
			return "", nil
		}
		return "", err
	}

	token, err := s.verify.Issue(ctx, acct.ID, verification.PurposePasswordReset, s.cfg.Verification.ResetTokenTTL)
	if err != nil {
		return "", err
	}
	s.emitAudit(ctx, auditPasswordReset, acct.ID, "", true, "requested")
	return token, nil
}

// ConfirmPasswordReset burns the token, stores the new password hash,
// and revokes every session of the account. A password change is a
// security event; nothing issued before it survives.
func (s *Service) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if s.verify == nil {
		return ErrNotReady
	}

	accountID, err := s.verify.Consume(ctx, rawToken, verification.PurposePasswordReset)
	if err != nil {
		s.emitAudit(ctx, auditPasswordReset, "", "", false, "invalid_token")
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, accountID, "", s.now()); err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("session sweep after password reset failed")
	}

	s.alerts.Emit(alert.Event{
		Kind:      alert.KindPasswordChanged,
		AccountID: accountID,
		IP:        ctxString(ctx, ctxKeyClientIP),
	})
	s.emitAudit(ctx, auditPasswordReset, accountID, "", true, "completed")
	return nil
}

// ChangePassword is the logged-in variant: it requires the current
// password, stores the new hash, and revokes every other session.
func (s *Service) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword, currentSessionID string) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(currentPassword, acct.PasswordHash)
	if err != nil || !ok {
		s.emitAudit(ctx, auditPasswordReset, accountID, "", false, "wrong_current_password")
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, accountID, currentSessionID, s.now()); err != nil {
		s.log.Warn().Err(err).Str("account_id", accountID).Msg("session sweep after password change failed")
	}

	s.alerts.Emit(alert.Event{
		Kind:      alert.KindPasswordChanged,
		AccountID: accountID,
		IP:        ctxString(ctx, ctxKeyClientIP),
	})
	s.emitAudit(ctx, auditPasswordReset, accountID, currentSessionID, true, "changed")
	return nil
}
