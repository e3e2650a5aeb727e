package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("a", 32))
	t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("b", 32))
}

func TestLoad_Defaults(t *testing.T) {
	setSecrets(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Addr)
	assert.Equal(t, BackendGorm, cfg.RevocationBackend)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, "authtrust", cfg.Issuer)
	assert.Empty(t, cfg.AllowedClients)
	assert.Equal(t, 3*time.Second, cfg.ValidateTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	setSecrets(t)
	t.Setenv("REVOCATION_BACKEND", "redis")
	t.Setenv("ALLOWED_CLIENT_IDS", "orders, billing")
	t.Setenv("ACCESS_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.RevocationBackend)
	assert.Equal(t, []string{"orders", "billing"}, cfg.AllowedClients)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
}

func TestLoad_Rejects(t *testing.T) {
	t.Run("short secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "short")
		t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("b", 32))
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("same secrets", func(t *testing.T) {
		t.Setenv("JWT_SECRET", strings.Repeat("a", 32))
		t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("a", 32))
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("unknown backend", func(t *testing.T) {
		setSecrets(t)
		t.Setenv("REVOCATION_BACKEND", "memcached")
		_, err := Load()
		assert.Error(t, err)
	})
}
