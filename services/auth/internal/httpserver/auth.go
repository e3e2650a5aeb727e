package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/authtrust/pkg/authclient"
	jwthelp "github.com/Skotchmaster/authtrust/pkg/jwt"
	"github.com/Skotchmaster/authtrust/pkg/logging"
	authmw "github.com/Skotchmaster/authtrust/pkg/middleware/auth"
	"github.com/Skotchmaster/authtrust/pkg/tokens"
	"github.com/Skotchmaster/authtrust/services/auth/internal/service"
	"github.com/Skotchmaster/authtrust/services/auth/internal/transport"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func httpError(status int, msg, code string) *echo.HTTPError {
	return echo.NewHTTPError(status, echo.Map{"error": msg, "code": code})
}

func internalError() *echo.HTTPError {
	return httpError(http.StatusInternalServerError, "internal server error", string(tokens.CodeServerError))
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return httpError(http.StatusBadRequest, "invalid body", "BAD_REQUEST")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrConflict):
		return httpError(http.StatusConflict, "user already exists", "CONFLICT")
	case errors.Is(err, service.ErrValidation):
		return httpError(http.StatusBadRequest, "username, email and password are required", "VALIDATION_ERROR")
	case err != nil:
		return internalError()
	}

	l.Info("register_successful", "user_id", user.ID)
	return c.JSON(http.StatusCreated, transport.UserResponse{User: *user})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return httpError(http.StatusBadRequest, "invalid body", "BAD_REQUEST")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.Svc.Login(ctx, req.UsernameOrEmail, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrValidation):
		return httpError(http.StatusUnauthorized, "invalid username or password", "INVALID_CREDENTIALS")
	case err != nil:
		return internalError()
	}

	jwthelp.SetSession(c, res.Tokens)
	l.Info("login_successful", "user_id", res.User.ID)

	return c.JSON(http.StatusOK, transport.LoginResponse{User: res.User, Tokens: res.Tokens})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return httpError(http.StatusBadRequest, "invalid body", "BAD_REQUEST")
	}
	if req.RefreshToken == "" {
		if cookie, err := c.Cookie(authmw.RefreshCookie); err == nil {
			req.RefreshToken = cookie.Value
		}
	}

	pair, err := h.Svc.Rotate(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, service.ErrInvalidGrant):
		jwthelp.ClearSession(c)
		return httpError(http.StatusUnauthorized, "invalid or expired refresh token", "INVALID_GRANT")
	case err != nil:
		return internalError()
	}

	jwthelp.SetSession(c, pair)
	l.Info("refresh_successful")
	return c.JSON(http.StatusOK, transport.TokensResponse{Tokens: pair})
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	accessToken := authmw.ExtractToken(c.Request())
	if accessToken == "" {
		return httpError(http.StatusUnauthorized, "authentication required", string(tokens.CodeNoToken))
	}

	var req transport.LogoutRequest
	_ = c.Bind(&req)
	if req.RefreshToken == "" {
		if cookie, err := c.Cookie(authmw.RefreshCookie); err == nil {
			req.RefreshToken = cookie.Value
		}
	}

	err := h.Svc.LogOut(ctx, accessToken, req.RefreshToken)
	jwthelp.ClearSession(c)
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		return httpError(http.StatusUnauthorized, "invalid access token", string(tokens.CodeTokenInvalid))
	case err != nil:
		l.Error("logout_failed", "status", 500, "error", err)
		return internalError()
	}

	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHTTP) Verify(c echo.Context) error {
	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return httpError(http.StatusUnauthorized, "authentication required", string(tokens.CodeNoToken))
	}
	return c.JSON(http.StatusOK, transport.PrincipalResponse{User: p})
}

// Validate serves relying parties that cannot or will not verify locally.
func (h *AuthHTTP) Validate(c echo.Context) error {
	ctx := c.Request().Context()

	var req authclient.ValidateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, authclient.ValidateResponse{Error: tokens.CodeTokenInvalid})
	}

	res, err := h.Svc.Validate(ctx, req.AccessToken, req.ClientID)
	if err != nil {
		return internalError()
	}
	if !res.Valid {
		return c.JSON(http.StatusUnauthorized, res)
	}
	return c.JSON(http.StatusOK, res)
}

// RequireAccess authenticates calls to the issuer itself. The issuer owns the
// revocation store, so it checks it directly rather than through a cache.
func (h *AuthHTTP) RequireAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		tok := authmw.ExtractToken(c.Request())
		if tok == "" {
			return httpError(http.StatusUnauthorized, "authentication required", string(tokens.CodeNoToken))
		}

		p, code, err := h.Svc.Introspect(ctx, tok)
		if err != nil {
			logging.FromContext(ctx).Error("introspect_failed", "status", 500, "error", err)
			return internalError()
		}
		if code != "" {
			return httpError(http.StatusUnauthorized, "access token rejected", string(code))
		}

		authmw.SetPrincipal(c, *p)
		return next(c)
	}
}
