// Package jwt holds the browser-session side of token handling: the cookies
// that carry a pair and the storage key derived from a token value.
package jwt

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/authtrust/pkg/tokens"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

func sessionCookie(name, value string, exp time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.Expires = time.Unix(0, 0)
		c.MaxAge = -1
	} else {
		c.Expires = exp
	}
	return c
}

// SetSession writes both cookies, each expiring with its own token.
func SetSession(c echo.Context, pair tokens.Pair) {
	c.SetCookie(sessionCookie(AccessCookie, pair.AccessToken, pair.AccessExp))
	c.SetCookie(sessionCookie(RefreshCookie, pair.RefreshToken, pair.RefreshExp))
}

func ClearSession(c echo.Context) {
	c.SetCookie(sessionCookie(AccessCookie, "", time.Time{}))
	c.SetCookie(sessionCookie(RefreshCookie, "", time.Time{}))
}

// TokenKey is the storage key for a token value. Stores never keep the
// bearer value itself.
func TokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
