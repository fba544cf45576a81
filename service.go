package authcore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harborgate/authcore/alert"
	"github.com/harborgate/authcore/password"
	"github.com/harborgate/authcore/session"
	"github.com/harborgate/authcore/token"
	"github.com/harborgate/authcore/totp"
)

var timeNow = time.Now

// Service is the authentication engine. Construct it through Builder;
// the zero value is not usable. All methods are safe for concurrent use.
type Service struct {
	cfg       Config
	log       zerolog.Logger
	accounts  AccountProvider
	hasher    *password.Hasher
	tokens    *token.Manager
	blacklist *token.Blacklist
	sessions  *session.Store
	second    *totp.Engine
	verify    VerificationStore
	alerts    *alert.Dispatcher
	audit     *auditDispatcher
	metrics   *Metrics
	dummyHash string
	now       func() time.Time
}

// Close drains the alert and audit queues. The service must not be used
// afterwards.
func (s *Service) Close() {
	s.alerts.Close()
	s.audit.close()
}

// MetricsSnapshot returns a copy of the engine counters keyed by name.
func (s *Service) MetricsSnapshot() map[string]uint64 {
	return s.metrics.Snapshot()
}

// AlertsDropped reports alerts discarded under backpressure.
func (s *Service) AlertsDropped() uint64 {
	return s.alerts.Dropped()
}

// AuditDropped reports audit events discarded under backpressure.
func (s *Service) AuditDropped() uint64 {
	return s.audit.droppedCount()
}

func (s *Service) emitAudit(ctx context.Context, name, accountID, sessionID string, success bool, reason string) {
	s.audit.emit(AuditEvent{
		Name:      name,
		AccountID: accountID,
		SessionID: sessionID,
		IP:        ctxString(ctx, ctxKeyClientIP),
		Success:   success,
		Reason:    reason,
		At:        s.now().UTC(),
	})
}

// deviceFromContext assembles the device descriptor for a new session.
// Without a client-supplied device ID a stable fingerprint is derived
// from IP and user agent, so repeat logins from the same browser land
// on the same session slot.
func (s *Service) deviceFromContext(ctx context.Context) session.DeviceInfo {
	dev := session.DeviceInfo{
		DeviceID:   ctxString(ctx, ctxKeyDeviceID),
		DeviceName: ctxString(ctx, ctxKeyDeviceName),
		Platform:   ctxString(ctx, ctxKeyPlatform),
		IP:         ctxString(ctx, ctxKeyClientIP),
		UserAgent:  ctxString(ctx, ctxKeyUserAgent),
	}
	if dev.DeviceID == "" {
		sum := sha256.Sum256([]byte(dev.IP + "|" + dev.UserAgent))
		dev.DeviceID = "fp-" + hex.EncodeToString(sum[:8])
	}
	if dev.Platform == "" {
		dev.Platform = "web"
	}
	return dev
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
