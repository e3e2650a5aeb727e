package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/authtrust/pkg/tokens"
)

func cookiesOf(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestSession(t *testing.T) {
	t.Parallel()

	e := echo.New()
	now := time.Now().Truncate(time.Second).UTC()
	pair := tokens.Pair{
		AccessToken:  "access",
		RefreshToken: "refresh",
		AccessExp:    now.Add(15 * time.Minute),
		RefreshExp:   now.Add(7 * 24 * time.Hour),
	}

	rec := httptest.NewRecorder()
	SetSession(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), pair)
	got := cookiesOf(rec)
	require.Len(t, got, 2)
	assert.Equal(t, "access", got[AccessCookie].Value)
	assert.True(t, got[AccessCookie].HttpOnly)
	assert.True(t, got[AccessCookie].Secure)
	assert.Equal(t, http.SameSiteLaxMode, got[AccessCookie].SameSite)
	assert.True(t, pair.AccessExp.Equal(got[AccessCookie].Expires))
	assert.True(t, pair.RefreshExp.Equal(got[RefreshCookie].Expires))

	rec = httptest.NewRecorder()
	ClearSession(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	got = cookiesOf(rec)
	require.Len(t, got, 2)
	assert.Empty(t, got[RefreshCookie].Value)
	assert.Equal(t, -1, got[RefreshCookie].MaxAge)
}

func TestTokenKey(t *testing.T) {
	t.Parallel()

	a := TokenKey("token-a")
	assert.Len(t, a, 64)
	assert.Equal(t, a, TokenKey("token-a"))
	assert.NotEqual(t, a, TokenKey("token-b"))
}
