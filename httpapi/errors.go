package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/harborgate/authcore"
	"github.com/harborgate/authcore/token"
	"github.com/harborgate/authcore/totp"
	"github.com/harborgate/authcore/verification"
)

// fail maps engine errors to responses. Anything unmapped is a 500 with
// a generic body; internal detail goes to the log, never to the client.
func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, authcore.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	case errors.Is(err, authcore.ErrAccountNotLoginable):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account_not_loginable"})
	case errors.Is(err, authcore.ErrSecondFactorRequired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "second_factor_required"})
	case errors.Is(err, authcore.ErrInvalidSecondFactorCode):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_second_factor_code"})
	case errors.Is(err, authcore.ErrBackupCodeExhausted):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "backup_codes_exhausted"})
	case errors.Is(err, authcore.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session_not_found"})
	case errors.Is(err, authcore.ErrSessionMismatch):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session_invalid"})
	case errors.Is(err, token.ErrExpired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token_expired"})
	case errors.Is(err, token.ErrRevoked):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token_revoked"})
	case errors.Is(err, token.ErrMalformed), errors.Is(err, token.ErrWrongKind):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_token"})
	case errors.Is(err, totp.ErrAlreadyEnabled):
		return c.JSON(http.StatusConflict, echo.Map{"error": "second_factor_already_enabled"})
	case errors.Is(err, verification.ErrInvalidToken):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_verification_token"})
	case errors.Is(err, authcore.ErrNotReady):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service_unavailable"})
	default:
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
	}
}
