package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	t.Parallel()

	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("AT_STR", "value")
	t.Setenv("AT_INT", "42")
	t.Setenv("AT_BAD_INT", "x")
	t.Setenv("AT_BOOL", "false")
	t.Setenv("AT_DUR", "90s")
	t.Setenv("AT_BAD_DUR", "-1s")

	assert.Equal(t, "value", EnvDefault("AT_STR", "def"))
	assert.Equal(t, "def", EnvDefault("AT_MISSING", "def"))
	assert.Equal(t, 42, EnvIntDefault("AT_INT", 1))
	assert.Equal(t, 1, EnvIntDefault("AT_BAD_INT", 1))
	assert.False(t, EnvBoolDefault("AT_BOOL", true))
	assert.True(t, EnvBoolDefault("AT_MISSING", true))
	assert.Equal(t, 90*time.Second, EnvDurationDefault("AT_DUR", time.Minute))
	assert.Equal(t, time.Minute, EnvDurationDefault("AT_BAD_DUR", time.Minute))
}

func TestLoadDotenv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("AT_FROM_FILE=file\nAT_PRESET=file\n"), 0o600))

	t.Setenv("AT_PRESET", "process")
	t.Setenv("AT_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("AT_FROM_FILE"))

	LoadDotenv(path)
	t.Cleanup(func() { _ = os.Unsetenv("AT_FROM_FILE") })

	assert.Equal(t, "file", os.Getenv("AT_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("AT_PRESET"))

	LoadDotenv(filepath.Join(dir, "missing.env"))
}

func TestRequireSecret(t *testing.T) {
	t.Parallel()

	assert.Error(t, RequireSecret(nil, "JWT_SECRET"))
	assert.Error(t, RequireSecret([]byte("short"), "JWT_SECRET"))
	assert.NoError(t, RequireSecret([]byte("0123456789abcdef0123456789abcdef"), "JWT_SECRET"))
}
