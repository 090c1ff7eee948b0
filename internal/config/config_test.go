// ABOUTME: Tests for YAML config loading with env expansion and duration parsing.
// ABOUTME: Covers defaults, overrides, and validation failures.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes content to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults for missing fields", func(t *testing.T) {
		path := writeConfig(t, `
server:
  http_addr: ":9090"
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
		assert.Equal(t, 5, cfg.Pool.MaxConnectionsPerServer)
		assert.Equal(t, 60*time.Second, cfg.Pool.HealthCheckInterval)
		assert.Equal(t, 3, cfg.Retry.MaxAttempts)
		assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
		assert.Equal(t, 5, cfg.Query.MaxTurns)
		assert.Equal(t, 100, cfg.Query.MaxConcurrentRequests)
	})

	t.Run("parses duration strings", func(t *testing.T) {
		path := writeConfig(t, `
pool:
  health_check_interval: 5s
  connect_timeout: 2s
retry:
  base_delay: 100ms
  max_delay: 1s
breaker:
  cooldown: 45s
query:
  request_timeout: 2m
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 5*time.Second, cfg.Pool.HealthCheckInterval)
		assert.Equal(t, 2*time.Second, cfg.Pool.ConnectTimeout)
		assert.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelay)
		assert.Equal(t, time.Second, cfg.Retry.MaxDelay)
		assert.Equal(t, 45*time.Second, cfg.Breaker.Cooldown)
		assert.Equal(t, 2*time.Minute, cfg.Query.RequestTimeout)
	})

	t.Run("expands environment variables", func(t *testing.T) {
		t.Setenv("TOOLGATE_TEST_KEY", "sk-secret")
		path := writeConfig(t, `
model:
  api_key: ${TOOLGATE_TEST_KEY}
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "sk-secret", cfg.Model.APIKey)
	})

	t.Run("rejects invalid duration", func(t *testing.T) {
		path := writeConfig(t, `
breaker:
  cooldown: soon
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "breaker.cooldown")
	})

	t.Run("rejects zero pool cap", func(t *testing.T) {
		path := writeConfig(t, `
pool:
  max_connections_per_server: 0
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_connections_per_server")
	})

	t.Run("rejects augmenter without server", func(t *testing.T) {
		path := writeConfig(t, `
augmenter:
  enabled: true
  server: ""
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "augmenter.server")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
