package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  tracking_base_url: "https://mail.example.com/track"
  cors_origins: ["https://app.example.com"]

database:
  url: "postgres://localhost/mailroom_test?sslmode=disable"

redis:
  addr: "localhost:6379"

sparkpost:
  api_key: "test-api-key"
  timeout_seconds: 45

sending:
  provider: "sparkpost"
  company_name: "Acme"
  from_email: "no-reply@acme.test"
  pace_milliseconds: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "https://mail.example.com/track", cfg.Server.TrackingBaseURL)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "postgres://localhost/mailroom_test?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	assert.Equal(t, "test-api-key", cfg.SparkPost.APIKey)
	assert.Equal(t, 45*time.Second, cfg.SparkPost.Timeout())

	assert.Equal(t, "Acme", cfg.Sending.CompanyName)
	assert.Equal(t, 250*time.Millisecond, cfg.Sending.Pace())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost/mailroom?sslmode=disable"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "http://localhost:8080/track", cfg.Server.TrackingBaseURL)
	assert.Equal(t, "https://api.sparkpost.com/api/v1", cfg.SparkPost.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.SparkPost.Timeout())
	assert.Equal(t, "us-west-2", cfg.SES.Region)
	assert.Equal(t, "sparkpost", cfg.Sending.Provider)
	assert.Equal(t, "Mailroom", cfg.Sending.CompanyName)
	assert.Equal(t, 500*time.Millisecond, cfg.Sending.Pace())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost/from_yaml"
sparkpost:
  api_key: "yaml-key"
`)

	t.Setenv("DATABASE_URL", "postgres://localhost/from_env")
	t.Setenv("SPARKPOST_API_KEY", "env-key")
	t.Setenv("SENDING_PROVIDER", "ses")
	t.Setenv("TRACKING_BASE_URL", "https://t.example.com")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/from_env", cfg.Database.URL)
	assert.Equal(t, "env-key", cfg.SparkPost.APIKey)
	assert.Equal(t, "ses", cfg.Sending.Provider)
	assert.Equal(t, "https://t.example.com", cfg.Server.TrackingBaseURL)
}
