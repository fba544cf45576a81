package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type codeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) secondFactorStatus(c echo.Context) error {
	identity := identityFrom(c)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	enabled, remaining, err := h.svc.SecondFactorStatus(ctx, identity.AccountID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"enabled":              enabled,
		"remainingBackupCodes": remaining,
	})
}

func (h *Handler) secondFactorSetup(c echo.Context) error {
	identity := identityFrom(c)

	ctx, cancel := h.requestContext(c)
	defer cancel()

	prov, err := h.svc.SetupSecondFactor(ctx, identity.AccountID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"secret":      prov.Secret,
		"uri":         prov.URI,
		"backupCodes": prov.BackupCodes,
	})
}

func (h *Handler) secondFactorEnable(c echo.Context) error {
	identity := identityFrom(c)
	var req codeRequest
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.svc.EnableSecondFactor(ctx, identity.AccountID, req.Code, identity.SessionID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"enabled": true})
}

func (h *Handler) secondFactorDisable(c echo.Context) error {
	identity := identityFrom(c)
	var req codeRequest
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.svc.DisableSecondFactor(ctx, identity.AccountID, req.Code); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"enabled": false})
}

func (h *Handler) secondFactorVerify(c echo.Context) error {
	identity := identityFrom(c)
	var req codeRequest
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.svc.VerifySecondFactor(ctx, identity.AccountID, req.Code)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"method":               res.Method,
		"remainingBackupCodes": res.RemainingBackupCodes,
	})
}

func (h *Handler) regenerateBackupCodes(c echo.Context) error {
	identity := identityFrom(c)
	var req codeRequest
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	codes, err := h.svc.RegenerateBackupCodes(ctx, identity.AccountID, req.Code)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"backupCodes": codes})
}
