package authcore

import (
	"context"
	"errors"

	"github.com/harborgate/authcore/session"
)

const (
	auditLogout    = "auth.logout"
	auditLogoutAll = "auth.logout_all"
)

// Logout ends the session behind the refresh token: the token's jti
// goes on the blacklist and the session is revoked durable-first.
// Logging out an already-dead session succeeds; logout is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return err
	}

	if err := s.blacklist.Revoke(ctx, claims); err != nil {
		// The session revocation below still kills the refresh path;
		// the blacklist entry is belt and suspenders here.
		s.log.Warn().Err(err).Msg("refresh token blacklisting failed during logout")
	}

	if err := s.sessions.Revoke(ctx, claims.SessionID, s.now()); err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}

	s.metrics.Inc(MetricLogout)
	s.metrics.Inc(MetricSessionRevoked)
	s.emitAudit(ctx, auditLogout, claims.AccountID, claims.SessionID, true, "")
	return nil
}

// LogoutAll revokes every active session of the account except
// exceptSessionID (pass "" for a full wipe). Outstanding refresh tokens
// die at the session check; outstanding access tokens age out within
// one access TTL.
func (s *Service) LogoutAll(ctx context.Context, accountID, exceptSessionID string) (int, error) {
	n, err := s.sessions.RevokeAll(ctx, accountID, exceptSessionID, s.now())
	if err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.metrics.Inc(MetricSessionRevoked)
	}
	s.emitAudit(ctx, auditLogoutAll, accountID, exceptSessionID, true, "")
	return n, nil
}
