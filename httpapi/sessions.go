package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/harborgate/authcore/session"
)

type sessionResponse struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"deviceId"`
	DeviceName   string    `json:"deviceName,omitempty"`
	Platform     string    `json:"platform"`
	IP           string    `json:"ip"`
	Current      bool      `json:"current"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (h *Handler) listSessions(c echo.Context) error {
	identity := identityFrom(c)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	sessions, err := h.svc.ActiveSessions(ctx, identity.AccountID)
	if err != nil {
		return h.fail(c, err)
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s, identity.SessionID))
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

func (h *Handler) revokeSession(c echo.Context) error {
	identity := identityFrom(c)
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session id is required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.svc.RevokeSession(ctx, identity.AccountID, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// revokeOtherSessions sweeps every session except the caller's own.
func (h *Handler) revokeOtherSessions(c echo.Context) error {
	identity := identityFrom(c)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	n, err := h.svc.LogoutAll(ctx, identity.AccountID, identity.SessionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"revoked": n})
}

func toSessionResponse(s *session.Session, currentID string) sessionResponse {
	return sessionResponse{
		ID:           s.ID,
		DeviceID:     s.DeviceID,
		DeviceName:   s.DeviceName,
		Platform:     s.Platform,
		IP:           s.IP,
		Current:      s.ID == currentID,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		ExpiresAt:    s.ExpiresAt,
	}
}
