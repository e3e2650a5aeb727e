package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/authtrust/internal/mykafka"
	"github.com/Skotchmaster/authtrust/pkg/db"
	"github.com/Skotchmaster/authtrust/pkg/logging"
	"github.com/Skotchmaster/authtrust/pkg/metrics"
	authmw "github.com/Skotchmaster/authtrust/pkg/middleware/auth"
	"github.com/Skotchmaster/authtrust/pkg/tokens"
	"github.com/Skotchmaster/authtrust/services/auth/internal/repo"
	"github.com/Skotchmaster/authtrust/services/auth/internal/service"
)

type testServer struct {
	e   *echo.Echo
	svc *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gdb, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	r := repo.NewGormRepo(gdb)
	require.NoError(t, r.Migrate(context.Background()))

	svc := &service.AuthService{
		Users: r,
		Store: r,
		Signer: tokens.NewSigner(tokens.SignerConfig{
			AccessSecret:  []byte("test-jwt-secret"),
			RefreshSecret: []byte("test-refresh-secret"),
		}),
		Events:         mykafka.Nop{},
		Metrics:        metrics.New("test"),
		AllowedClients: []string{"orders"},
	}

	e := echo.New()
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{Svc: svc},
		Logger:      logging.Discard(),
		Metrics:     svc.Metrics,
		Ready:       r.Ping,
	})
	return &testServer{e: e, svc: svc}
}

type call struct {
	method string
	path   string
	body   string
	bearer string
}

func (s *testServer) do(t *testing.T, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	if c.body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func tokensFrom(t *testing.T, body map[string]any) (string, string) {
	t.Helper()
	toks, ok := body["tokens"].(map[string]any)
	require.True(t, ok, "response has tokens: %v", body)
	return toks["accessToken"].(string), toks["refreshToken"].(string)
}

func TestAuthHTTP_RegisterLoginRefreshLogout(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec, body := s.do(t, call{method: http.MethodPost, path: "/auth/register", body: `{"username":"erin","email":"erin@example.com","password":"Secret123"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := body["user"].(map[string]any)
	assert.Equal(t, "erin", user["username"])
	assert.NotContains(t, user, "PasswordHash")

	rec, _ = s.do(t, call{method: http.MethodPost, path: "/auth/register", body: `{"username":"erin","email":"erin@example.com","password":"Secret123"}`})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, body = s.do(t, call{method: http.MethodPost, path: "/auth/login", body: `{"usernameOrEmail":"erin@example.com","password":"Secret123"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	access, refresh := tokensFrom(t, body)
	names := []string{}
	for _, c := range rec.Result().Cookies() {
		names = append(names, c.Name)
		assert.True(t, c.HttpOnly)
	}
	assert.ElementsMatch(t, []string{authmw.AccessCookie, authmw.RefreshCookie}, names)

	rec, body = s.do(t, call{method: http.MethodGet, path: "/auth/verify", bearer: access})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "erin", body["user"].(map[string]any)["username"])

	rec, body = s.do(t, call{method: http.MethodPost, path: "/auth/refresh", body: `{"refreshToken":"` + refresh + `"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	newAccess, newRefresh := tokensFrom(t, body)
	assert.NotEqual(t, refresh, newRefresh)

	rec, body = s.do(t, call{method: http.MethodPost, path: "/auth/refresh", body: `{"refreshToken":"` + refresh + `"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_GRANT", body["code"])

	rec, _ = s.do(t, call{method: http.MethodPost, path: "/auth/logout", bearer: newAccess, body: `{"refreshToken":"` + newRefresh + `"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body = s.do(t, call{method: http.MethodGet, path: "/auth/verify", bearer: newAccess})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(tokens.CodeTokenRevoked), body["code"])

	rec, _ = s.do(t, call{method: http.MethodPost, path: "/auth/refresh", body: `{"refreshToken":"` + newRefresh + `"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHTTP_BadRequests(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	tests := []struct {
		name   string
		call   call
		status int
		code   string
	}{
		{name: "register bad json", call: call{method: http.MethodPost, path: "/auth/register", body: `{`}, status: http.StatusBadRequest, code: "BAD_REQUEST"},
		{name: "register invalid email", call: call{method: http.MethodPost, path: "/auth/register", body: `{"username":"erin","email":"x","password":"Secret123"}`}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "login unknown user", call: call{method: http.MethodPost, path: "/auth/login", body: `{"usernameOrEmail":"ghost","password":"Secret123"}`}, status: http.StatusUnauthorized, code: "INVALID_CREDENTIALS"},
		{name: "login missing fields", call: call{method: http.MethodPost, path: "/auth/login", body: `{}`}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "refresh garbage", call: call{method: http.MethodPost, path: "/auth/refresh", body: `{"refreshToken":"nope"}`}, status: http.StatusUnauthorized, code: "INVALID_GRANT"},
		{name: "logout without token", call: call{method: http.MethodPost, path: "/auth/logout"}, status: http.StatusUnauthorized, code: "NO_TOKEN"},
		{name: "logout garbage token", call: call{method: http.MethodPost, path: "/auth/logout", bearer: "nope"}, status: http.StatusUnauthorized, code: "TOKEN_INVALID"},
		{name: "verify without token", call: call{method: http.MethodGet, path: "/auth/verify"}, status: http.StatusUnauthorized, code: "NO_TOKEN"},
	}

	for _, tt := range tests {
		rec, body := s.do(t, tt.call)
		assert.Equal(t, tt.status, rec.Code, tt.name)
		assert.Equal(t, tt.code, body["code"], tt.name)
	}
}

func TestAuthHTTP_Validate(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	pair, err := s.svc.Issue(context.Background(), tokens.Principal{UserID: 1, Role: "USER"})
	require.NoError(t, err)

	rec, body := s.do(t, call{method: http.MethodPost, path: "/oauth/validate", body: `{"access_token":"` + pair.AccessToken + `","client_id":"orders"}`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["valid"])
	assert.EqualValues(t, 1, body["user"].(map[string]any)["userId"])

	rec, body = s.do(t, call{method: http.MethodPost, path: "/oauth/validate", body: `{"access_token":"` + pair.AccessToken + `","client_id":"unknown"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CLIENT", body["error"])

	rec, body = s.do(t, call{method: http.MethodPost, path: "/oauth/validate", body: `{"access_token":"junk","client_id":"orders"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "TOKEN_INVALID", body["error"])

	rec, _ = s.do(t, call{method: http.MethodPost, path: "/oauth/validate", body: `not json`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, s.svc.Revoke(context.Background(), pair.AccessToken))
	rec, body = s.do(t, call{method: http.MethodPost, path: "/oauth/validate", body: `{"access_token":"` + pair.AccessToken + `","client_id":"orders"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", body["error"])
	assert.NotContains(t, body, "user")
}

type stalledStore struct{ service.RevocationStore }

func (stalledStore) IsRevoked(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestAuthHTTP_Validate_StalledStore(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	pair, err := s.svc.Issue(context.Background(), tokens.Principal{UserID: 1, Role: "USER"})
	require.NoError(t, err)
	s.svc.Store = stalledStore{s.svc.Store}
	s.svc.ValidateTimeout = 50 * time.Millisecond

	start := time.Now()
	rec, body := s.do(t, call{method: http.MethodPost, path: "/oauth/validate", body: `{"access_token":"` + pair.AccessToken + `","client_id":"orders"}`})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(tokens.CodeServerError), body["code"])
}

func TestAuthHTTP_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		rec, _ := s.do(t, call{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	_, _ = s.do(t, call{method: http.MethodPost, path: "/oauth/validate", body: `{"access_token":"junk","client_id":"orders"}`})
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_tokens_operations_total")
}
