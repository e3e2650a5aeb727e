package transport

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator(t *testing.T) {
	t.Parallel()

	v := NewValidator()

	tests := []struct {
		name  string
		req   any
		valid bool
	}{
		{name: "register ok", req: &RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "Secret123"}, valid: true},
		{name: "register bad email", req: &RegisterRequest{Username: "alice", Email: "nope", Password: "Secret123"}},
		{name: "register short password", req: &RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "short"}},
		{name: "login ok", req: &LoginRequest{UsernameOrEmail: "alice", Password: "x"}, valid: true},
		{name: "login missing password", req: &LoginRequest{UsernameOrEmail: "alice"}},
	}

	for _, tt := range tests {
		err := v.Validate(tt.req)
		if tt.valid {
			assert.NoError(t, err, tt.name)
			continue
		}
		var he *echo.HTTPError
		require.True(t, errors.As(err, &he), tt.name)
		assert.Equal(t, http.StatusBadRequest, he.Code, tt.name)
	}
}
