package tokens

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Code is the machine-readable reason a credential was not trusted.
type Code string

const (
	CodeNoToken       Code = "NO_TOKEN"
	CodeTokenExpired  Code = "TOKEN_EXPIRED"
	CodeTokenInvalid  Code = "TOKEN_INVALID"
	CodeTokenRevoked  Code = "TOKEN_REVOKED"
	CodeServerError   Code = "SERVER_ERROR"
	CodeInvalidClient Code = "INVALID_CLIENT"
)

// Classify maps a local verification error to a rejection code. An empty
// code means the failure is not conclusive locally (for example an issuer or
// audience this process does not recognise) and the issuer should decide.
func Classify(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, jwt.ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrWrongTokenUse):
		return CodeTokenInvalid
	default:
		return ""
	}
}
