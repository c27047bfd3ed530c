package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Browser.HeadlessMode)
	assert.True(t, cfg.Browser.StealthMode)
	assert.Equal(t, 60*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 0.7, cfg.Detector.PortalChangeThreshold)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "exponential", cfg.Retry.Strategy)
	assert.Equal(t, "applications:pending", cfg.Redis.Queue)
	assert.Equal(t, "applications:events", cfg.Redis.Channel)
	assert.Equal(t, 10, cfg.Limiter.RequestsPerMinute)
	assert.Equal(t, 2*time.Hour, cfg.Sweeps.StaleAfter)
	assert.Equal(t, "0 * * * *", cfg.Sweeps.StaleSchedule)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
browser:
  headless_mode: false
retry:
  max_attempts: 5
  strategy: linear
sweeps:
  stale_after: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Browser.HeadlessMode)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "linear", cfg.Retry.Strategy)
	assert.Equal(t, 30*time.Minute, cfg.Sweeps.StaleAfter)

	// Untouched sections keep their defaults.
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, 0.7, cfg.Detector.PortalChangeThreshold)
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_REDIS_URL", "redis://redis.internal:6380")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
redis:
  url: ${TEST_REDIS_URL}
  channel: $TEST_UNSET_CHANNEL
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "redis://redis.internal:6380", cfg.Redis.URL)
	assert.Equal(t, "$TEST_UNSET_CHANNEL", cfg.Redis.Channel, "unset variables are left as-is")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_DIR", "/tmp/apps")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.False(t, cfg.Browser.HeadlessMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/apps", cfg.Store.Directory)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestGetServerAddress(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddress())
}
