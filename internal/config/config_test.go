package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
env: development
auth:
  access_secret: test-access-secret-at-least-32-bytes!!
  refresh_secret: test-refresh-secret-at-least-32-bytes!
db:
  db_url: postgres://localhost:5432/literati
`

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 5, cfg.Lockout.MaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Lockout.Window)
	assert.Empty(t, cfg.Redis.RedisURL)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
}

func TestLoadFromConfigPathEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, minimalYAML))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/literati", cfg.DB.DatabaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCookiePolicyByEnvironment(t *testing.T) {
	prod := &Config{Env: EnvProduction}
	assert.Equal(t, CookiePolicy{Secure: true, SameSite: http.SameSiteNoneMode}, prod.CookiePolicy())

	dev := &Config{Env: EnvDevelopment}
	assert.Equal(t, CookiePolicy{Secure: false, SameSite: http.SameSiteLaxMode}, dev.CookiePolicy())

	unset := &Config{}
	assert.Equal(t, http.SameSiteLaxMode, unset.CookiePolicy().SameSite)
}
