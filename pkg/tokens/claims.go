package tokens

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	UseAccess  = "access"
	UseRefresh = "refresh"

	DefaultIssuer   = "authtrust"
	DefaultAudience = "authtrust-api"

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidPayload = errors.New("token payload is incomplete")
	ErrWrongTokenUse  = errors.New("token used for the wrong purpose")
)

// Principal is the identity a credential speaks for.
type Principal struct {
	UserID        uint   `json:"userId"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"emailVerified"`
}

// SubjectID is the principal's id as carried in the sub claim.
func (p Principal) SubjectID() string {
	return strconv.FormatUint(uint64(p.UserID), 10)
}

// Claims is the signed payload of both access and refresh tokens.
// TokenUse keeps a refresh token from ever passing as an access token.
type Claims struct {
	Principal
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the registered claims checks,
// so an incomplete payload never reaches a caller.
func (c Claims) Validate() error {
	if c.UserID == 0 || c.Role == "" {
		return ErrInvalidPayload
	}
	if c.TokenUse != UseAccess && c.TokenUse != UseRefresh {
		return ErrInvalidPayload
	}
	return nil
}

func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
