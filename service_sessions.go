package authcore

import (
	"context"
	"errors"

	"github.com/harborgate/authcore/session"
)

const auditSessionRevoke = "auth.session.revoke"

// ActiveSessions lists the account's live sessions, most recently
// active first.
func (s *Service) ActiveSessions(ctx context.Context, accountID string) ([]*session.Session, error) {
	return s.sessions.ListActive(ctx, accountID, s.now())
}

// RevokeSession revokes one session by ID. A session belonging to a
// different account reads as not found, so session IDs cannot be probed
// across accounts. Revoking an already-revoked session succeeds.
func (s *Service) RevokeSession(ctx context.Context, accountID, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if sess.AccountID != accountID {
		return ErrSessionNotFound
	}
	if sess.RevokedAt != nil {
		return nil
	}

	if err := s.sessions.Revoke(ctx, sessionID, s.now()); err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	s.metrics.Inc(MetricSessionRevoked)
	s.emitAudit(ctx, auditSessionRevoke, accountID, sessionID, true, "")
	return nil
}
