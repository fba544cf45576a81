package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/harborgate/authcore"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type secondFactorLoginRequest struct {
	TempToken  string `json:"tempToken"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Code       string `json:"code"`
	RememberMe bool   `json:"rememberMe"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	ExpiresIn        int64     `json:"expiresIn"`
	SessionID        string    `json:"sessionId"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type challengeResponse struct {
	SecondFactorRequired bool     `json:"secondFactorRequired"`
	TempToken            string   `json:"tempToken"`
	ExpiresIn            int64    `json:"expiresIn"`
	Methods              []string `json:"methods"`
}

func grantResponse(grant *authcore.TokenGrant) tokenResponse {
	return tokenResponse{
		AccessToken:      grant.AccessToken,
		RefreshToken:     grant.RefreshToken,
		ExpiresIn:        int64(grant.AccessTTL.Seconds()),
		SessionID:        grant.SessionID,
		RefreshExpiresAt: grant.RefreshExpiresAt,
	}
}

func (h *Handler) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.svc.Login(ctx, req.Email, req.Password, req.RememberMe)
	if err != nil {
		return h.fail(c, err)
	}

	if outcome.Challenge != nil {
		return c.JSON(http.StatusOK, challengeResponse{
			SecondFactorRequired: true,
			TempToken:            outcome.Challenge.TempToken,
			ExpiresIn:            int64(outcome.Challenge.ExpiresIn.Seconds()),
			Methods:              outcome.Challenge.Methods,
		})
	}
	return c.JSON(http.StatusOK, grantResponse(outcome.Tokens))
}

// secondFactorLogin accepts either the temp token from a prior login
// response or raw credentials, plus the code.
func (h *Handler) secondFactorLogin(c echo.Context) error {
	var req secondFactorLoginRequest
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	var (
		grant *authcore.TokenGrant
		err   error
	)
	switch {
	case req.TempToken != "":
		grant, err = h.svc.CompleteSecondFactorLogin(ctx, req.TempToken, req.Code, req.RememberMe)
	case req.Email != "" && req.Password != "":
		grant, err = h.svc.LoginWithSecondFactor(ctx, req.Email, req.Password, req.Code, req.RememberMe)
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tempToken or credentials are required"})
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, grantResponse(grant))
}

func (h *Handler) refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken is required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	grant, err := h.svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": grant.AccessToken,
		"expiresIn":   int64(grant.AccessTTL.Seconds()),
	})
}

func (h *Handler) logout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken is required"})
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.svc.Logout(ctx, req.RefreshToken); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) validate(c echo.Context) error {
	identity := identityFrom(c)
	return c.JSON(http.StatusOK, echo.Map{
		"accountId": identity.AccountID,
		"deviceId":  identity.DeviceID,
		"sessionId": identity.SessionID,
		"expiresAt": identity.ExpiresAt,
	})
}
