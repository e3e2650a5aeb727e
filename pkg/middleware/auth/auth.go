package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	jwthelp "github.com/Skotchmaster/authtrust/pkg/jwt"
	"github.com/Skotchmaster/authtrust/pkg/logging"
	"github.com/Skotchmaster/authtrust/pkg/tokens"
	"github.com/Skotchmaster/authtrust/pkg/verifier"
)

const (
	CtxUserID    = "user_id"
	CtxRole      = "role"
	CtxPrincipal = "principal"

	AccessCookie  = jwthelp.AccessCookie
	RefreshCookie = jwthelp.RefreshCookie
)

// ExtractToken looks at the Authorization bearer header first and falls back
// to the access token cookie.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if tok = strings.TrimSpace(tok); tok != "" {
				return tok
			}
		}
	}
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

type Auth struct {
	v *verifier.Verifier
}

func New(v *verifier.Verifier) *Auth {
	return &Auth{v: v}
}

func (m *Auth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.handle(next, false)
}

// OptionalAuth lets requests without any credential through anonymously.
// A credential that is presented must still verify.
func (m *Auth) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.handle(next, true)
}

func (m *Auth) handle(next echo.HandlerFunc, optional bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok := ExtractToken(c.Request())
		if tok == "" && optional {
			return next(c)
		}

		ctx := c.Request().Context()
		d, err := m.v.Verify(ctx, tok)
		if err != nil {
			rej := verifier.AsRejection(err)
			logging.FromContext(ctx).Warn("auth_rejected", "status", rej.Status(), "code", rej.Code, "error", err)
			return RejectionError(rej)
		}

		SetPrincipal(c, d.Principal)
		return next(c)
	}
}

func RejectionError(rej *verifier.Rejection) *echo.HTTPError {
	return echo.NewHTTPError(rej.Status(), echo.Map{
		"error": rej.Message(),
		"code":  rej.Code,
	})
}

func SetPrincipal(c echo.Context, p tokens.Principal) {
	c.Set(CtxPrincipal, p)
	c.Set(CtxUserID, p.UserID)
	c.Set(CtxRole, p.Role)
}

func PrincipalFrom(c echo.Context) (tokens.Principal, bool) {
	p, ok := c.Get(CtxPrincipal).(tokens.Principal)
	return p, ok
}

func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
					"error": "authentication required",
					"code":  tokens.CodeNoToken,
				})
			}
			if !slices.Contains(roles, p.Role) {
				return echo.NewHTTPError(http.StatusForbidden, echo.Map{
					"error": "you don't have enough rights to see this page",
					"code":  "FORBIDDEN",
				})
			}
			return next(c)
		}
	}
}
