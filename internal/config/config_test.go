package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, 200, cfg.Chat.HistoryLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
  log_level: info
database:
  driver: sqlite
  url: "file::memory:"
chat:
  history_limit: 50
  typing_ttl: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("CLIENT_ORIGIN", "https://chat.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env wins over file")
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Chat.HistoryLimit)
	assert.Equal(t, 3*time.Second, cfg.Chat.TypingTTL)
	assert.Equal(t, "s3cret", cfg.Auth.SecretKey)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, "https://chat.example.com", cfg.Server.CORSOrigins)
	assert.Equal(t, 256, cfg.Chat.SendBuffer, "untouched values keep defaults")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Server.Env = "production"
	assert.Error(t, cfg.Validate(), "dev secret is refused in production")

	cfg.Auth.SecretKey = "real-secret"
	assert.NoError(t, cfg.Validate())

	cfg.Chat.HistoryLimit = 500
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Default()
	cfg.Server.CORSOrigins = " http://a.example , ,http://b.example"
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins())

	cfg.Server.CORSOrigins = ""
	assert.Empty(t, cfg.AllowedOrigins())
}
