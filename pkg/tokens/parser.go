package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Parser struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func NewParser(secret []byte, issuer, audience string) *Parser {
	return &Parser{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
}

// WithClock returns a copy of the parser that reads time from now.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	cp := *p
	cp.now = now
	return &cp
}

// Parse verifies signature, algorithm, issuer, audience and expiry and
// requires the token to be minted for use. On an expired but otherwise
// authentic token the claims are returned alongside jwt.ErrTokenExpired.
func (p *Parser) Parse(tokenStr, use string) (*Claims, error) {
	if len(p.secret) == 0 {
		return nil, errors.New("no signing secret configured")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return &claims, err
		}
		return nil, err
	}
	if claims.TokenUse != use {
		return nil, ErrWrongTokenUse
	}
	return &claims, nil
}
