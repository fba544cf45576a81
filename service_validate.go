package authcore

import (
	"context"

	"github.com/harborgate/authcore/token"
)

const auditValidate = "auth.validate"

// ValidateAccess checks an access token: signature, expiry, kind, and
// the revocation list. It deliberately makes no account-provider or
// durable-store calls; session revocation reaches access tokens within
// one access TTL, a staleness bound accepted by design.
func (s *Service) ValidateAccess(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		s.metrics.Inc(MetricValidateFailure)
		return nil, err
	}

	revoked, rerr := s.blacklist.IsRevoked(ctx, claims.ID)
	if revoked {
		if rerr != nil {
			s.log.Error().Err(rerr).Msg("validate denied, revocation check unavailable")
		}
		s.metrics.Inc(MetricValidateFailure)
		s.emitAudit(ctx, auditValidate, claims.AccountID, claims.SessionID, false, "revoked")
		return nil, token.ErrRevoked
	}

	s.metrics.Inc(MetricValidateSuccess)
	return &Identity{
		AccountID: claims.AccountID,
		DeviceID:  claims.DeviceID,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
