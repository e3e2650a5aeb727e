package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/authtrust/pkg/middleware/auth"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
	HeaderUserName = "X-User-Name"
)

var identityHeaders = []string{HeaderUserID, HeaderUserRole, HeaderUserName}

// StripIdentity drops identity headers sent by the client. Upstreams may
// only trust the ones the gateway sets after verification.
func StripIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range identityHeaders {
				c.Request().Header.Del(h)
			}
			return next(c)
		}
	}
}

// ForwardIdentity copies the verified principal into upstream headers.
func ForwardIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := authmw.PrincipalFrom(c)
			if ok {
				h := c.Request().Header
				h.Set(HeaderUserID, strconv.FormatUint(uint64(p.UserID), 10))
				h.Set(HeaderUserRole, p.Role)
				if p.Username != "" {
					h.Set(HeaderUserName, p.Username)
				}
			}
			return next(c)
		}
	}
}
