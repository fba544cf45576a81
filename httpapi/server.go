// Package httpapi exposes the auth engine over HTTP with Echo. Handlers
// are thin: bind JSON, call the engine, map sentinel errors to status
// codes. No business rules live here.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/harborgate/authcore"
)

const requestTimeout = 5 * time.Second

type Handler struct {
	svc *authcore.Service
	log zerolog.Logger
}

func New(svc *authcore.Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.health)
	e.GET("/metrics", h.metrics)

	auth := e.Group("/auth")
	auth.POST("/login", h.login)
	auth.POST("/2fa/login", h.secondFactorLogin)
	auth.POST("/refresh", h.refresh)
	auth.POST("/logout", h.logout)
	auth.POST("/password/reset/request", h.passwordResetRequest)
	auth.POST("/password/reset/confirm", h.passwordResetConfirm)
	auth.POST("/email/verify/confirm", h.emailVerifyConfirm)

	protected := auth.Group("", h.requireAccessToken)
	protected.GET("/validate", h.validate)
	protected.GET("/sessions", h.listSessions)
	protected.DELETE("/sessions/:id", h.revokeSession)
	protected.DELETE("/sessions", h.revokeOtherSessions)
	protected.POST("/password/change", h.changePassword)
	protected.GET("/2fa/status", h.secondFactorStatus)
	protected.POST("/2fa/setup", h.secondFactorSetup)
	protected.POST("/2fa/enable", h.secondFactorEnable)
	protected.POST("/2fa/disable", h.secondFactorDisable)
	protected.POST("/2fa/verify", h.secondFactorVerify)
	protected.POST("/2fa/backup-codes/regenerate", h.regenerateBackupCodes)
}

// requestContext carries request metadata into the engine and bounds
// every downstream call.
func (h *Handler) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	ctx = authcore.WithClientIP(ctx, c.RealIP())
	ctx = authcore.WithUserAgent(ctx, c.Request().UserAgent())
	if v := c.Request().Header.Get("X-Device-ID"); v != "" {
		ctx = authcore.WithDeviceID(ctx, v)
	}
	if v := c.Request().Header.Get("X-Device-Name"); v != "" {
		ctx = authcore.WithDeviceName(ctx, v)
	}
	if v := c.Request().Header.Get("X-Platform"); v != "" {
		ctx = authcore.WithPlatform(ctx, v)
	}
	return ctx, cancel
}

const identityKey = "authcore.identity"

// requireAccessToken validates the bearer token and stashes the
// identity on the Echo context.
func (h *Handler) requireAccessToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing_token"})
		}

		ctx, cancel := h.requestContext(c)
		defer cancel()

		identity, err := h.svc.ValidateAccess(ctx, raw)
		if err != nil {
			return h.fail(c, err)
		}
		c.Set(identityKey, identity)
		return next(c)
	}
}

func identityFrom(c echo.Context) *authcore.Identity {
	identity, _ := c.Get(identityKey).(*authcore.Identity)
	return identity
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// metrics renders the engine counters in Prometheus text exposition
// format. Counters only; no client library needed.
func (h *Handler) metrics(c echo.Context) error {
	snap := h.svc.MetricsSnapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "# TYPE %s counter\n%s %d\n", name, name, snap[name])
	}
	return c.Blob(http.StatusOK, "text/plain; version=0.0.4", []byte(b.String()))
}
