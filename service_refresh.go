package authcore

import (
	"context"
	"errors"

	"github.com/harborgate/authcore/session"
	"github.com/harborgate/authcore/token"
)

const auditRefresh = "auth.refresh"

// Refresh exchanges a live refresh token for a new access token. The
// refresh token itself is not rotated; it stays bound to its session
// for the session's lifetime. The check order is signature, blacklist,
// then session state, so a revoked token never reaches the session
// store.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AccessGrant, error) {
	fail := func(accountID, reason string, err error) (*AccessGrant, error) {
		s.metrics.Inc(MetricRefreshFailure)
		s.emitAudit(ctx, auditRefresh, accountID, "", false, reason)
		return nil, err
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return fail("", "bad_token", err)
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if revoked {
		reason := "revoked"
		if err != nil {
			// Backend outage: fail closed rather than honor a token we
			// cannot check.
			reason = "blacklist_unavailable"
			s.log.Error().Err(err).Msg("refresh denied, revocation check unavailable")
		}
		return fail(claims.AccountID, reason, token.ErrRevoked)
	}

	sess, err := s.sessions.Validate(ctx, claims.SessionID, refreshToken, s.now())
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fail(claims.AccountID, "session_not_found", ErrSessionNotFound)
		}
		return nil, err
	}
	if sess == nil {
		return fail(claims.AccountID, "session_inactive", ErrSessionMismatch)
	}

	access, ttl, err := s.tokens.IssueAccess(claims.AccountID, claims.DeviceID, claims.SessionID)
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditRefresh, claims.AccountID, claims.SessionID, true, "")
	return &AccessGrant{AccessToken: access, AccessTTL: ttl}, nil
}
