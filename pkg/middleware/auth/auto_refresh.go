package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/authtrust/pkg/authclient"
	jwthelp "github.com/Skotchmaster/authtrust/pkg/jwt"
	"github.com/Skotchmaster/authtrust/pkg/logging"
	"github.com/Skotchmaster/authtrust/pkg/tokens"
	"github.com/Skotchmaster/authtrust/pkg/verifier"
)

// AutoRefresh is RequireAuth for browser sessions: when the access cookie has
// expired and a refresh cookie is present, it rotates the pair through the
// issuer, sets the new cookies and verifies the new access token instead.
func (m *Auth) AutoRefresh(client *authclient.Client) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx)

			tok := ExtractToken(c.Request())
			d, err := m.v.Verify(ctx, tok)
			if err == nil {
				SetPrincipal(c, d.Principal)
				return next(c)
			}

			var rej *verifier.Rejection
			if !errors.As(err, &rej) || rej.Code != tokens.CodeTokenExpired {
				return RejectionError(verifier.AsRejection(err))
			}

			refreshCookie, rErr := c.Cookie(RefreshCookie)
			if rErr != nil || refreshCookie.Value == "" {
				return RejectionError(rej)
			}

			res, refErr := client.RefreshTokens(ctx, refreshCookie.Value)
			if refErr != nil {
				l.Warn("auto_refresh_failed", "status", 401, "error", refErr)
				jwthelp.ClearSession(c)
				return RejectionError(rej)
			}

			d, err = m.v.Verify(ctx, res.Tokens.AccessToken)
			if err != nil {
				jwthelp.ClearSession(c)
				return RejectionError(verifier.AsRejection(err))
			}

			jwthelp.SetSession(c, res.Tokens)
			l.Info("auto_refresh_successful", "user_id", d.Principal.UserID)

			SetPrincipal(c, d.Principal)
			return next(c)
		}
	}
}
