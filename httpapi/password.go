package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type passwordResetRequestBody struct {
	Email string `json:"email"`
}

type passwordResetConfirmBody struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type changePasswordBody struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type verifyTokenBody struct {
	Token string `json:"token"`
}

// passwordResetRequest always answers 202. Whether the email exists is
// not observable from the response; delivery happens out of band.
func (h *Handler) passwordResetRequest(c echo.Context) error {
	var req passwordResetRequestBody
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if _, err := h.svc.RequestPasswordReset(ctx, req.Email); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "accepted"})
}

func (h *Handler) passwordResetConfirm(c echo.Context) error {
	var req passwordResetConfirmBody
	if err := c.Bind(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token and newPassword are required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.svc.ConfirmPasswordReset(ctx, req.Token, req.NewPassword); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "password_reset"})
}

func (h *Handler) changePassword(c echo.Context) error {
	identity := identityFrom(c)
	var req changePasswordBody
	if err := c.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currentPassword and newPassword are required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.svc.ChangePassword(ctx, identity.AccountID, req.CurrentPassword, req.NewPassword, identity.SessionID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "password_changed"})
}

func (h *Handler) emailVerifyConfirm(c echo.Context) error {
	var req verifyTokenBody
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.svc.ConfirmEmailVerification(ctx, req.Token); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "email_verified"})
}
