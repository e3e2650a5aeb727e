package transport

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/authtrust/pkg/tokens"
	"github.com/Skotchmaster/authtrust/services/auth/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required,max=254"`
	Password        string `json:"password"        validate:"required,max=72"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UserResponse struct {
	User models.User `json:"user"`
}

type LoginResponse struct {
	User   models.User `json:"user"`
	Tokens tokens.Pair `json:"tokens"`
}

type TokensResponse struct {
	Tokens tokens.Pair `json:"tokens"`
}

type PrincipalResponse struct {
	User tokens.Principal `json:"user"`
}

// Validator plugs go-playground/validator into echo's c.Validate.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (cv *Validator) Validate(i any) error {
	if err := cv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{
			"error": err.Error(),
			"code":  "VALIDATION_ERROR",
		})
	}
	return nil
}
