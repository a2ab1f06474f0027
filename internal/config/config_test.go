package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "migrations", cfg.Database.MigrationsDir)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("JWT_SECRET=from-file\nSERVER_PORT=9090\nCORS_ALLOWED_ORIGINS=https://a.example, https://b.example\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("SERVER_ENV", "production")
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("SERVER_PORT")
	os.Unsetenv("CORS_ALLOWED_ORIGINS")
	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("CORS_ALLOWED_ORIGINS")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
