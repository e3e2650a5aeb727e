package verifier

import (
	"errors"
	"net/http"

	"github.com/Skotchmaster/authtrust/pkg/tokens"
)

// Rejection is the terminal outcome of a failed verification.
type Rejection struct {
	Code tokens.Code
	Err  error
	path Path
}

func reject(code tokens.Code, path Path, err error) *Rejection {
	return &Rejection{Code: code, Err: err, path: path}
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return string(r.Code) + ": " + r.Err.Error()
	}
	return string(r.Code)
}

func (r *Rejection) Unwrap() error { return r.Err }

func (r *Rejection) Status() int {
	if r.Code == tokens.CodeServerError {
		return http.StatusInternalServerError
	}
	return http.StatusUnauthorized
}

func (r *Rejection) Message() string {
	switch r.Code {
	case tokens.CodeNoToken:
		return "authentication required"
	case tokens.CodeTokenExpired:
		return "access token expired"
	case tokens.CodeTokenRevoked:
		return "access token revoked"
	case tokens.CodeServerError:
		return "authentication unavailable"
	default:
		return "invalid access token"
	}
}

// AsRejection unwraps err into a *Rejection, mapping anything else to
// SERVER_ERROR.
func AsRejection(err error) *Rejection {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej
	}
	return reject(tokens.CodeServerError, "", err)
}
