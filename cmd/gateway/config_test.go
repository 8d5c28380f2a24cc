package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://127.0.0.1:9000")

	cfg, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{":8080"}, cfg.ListenAddrs)
	assert.Equal(t, 1024, cfg.HighWaterMark)
	assert.Equal(t, 100, cfg.Workers)
	assert.False(t, cfg.Rate.Enabled)
	assert.False(t, cfg.Stats.Enabled)
}

func TestLoadConfig_FileEnvFlagsPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addrs = [":7001", ":7002"]
upstream_url = "http://file:9000"
high_water_mark = 8
workers = 4
overload_log_every = "250ms"

[rate]
enabled = true
rps = 5.0
burst = 3
`), 0o600))

	t.Setenv("HIGH_WATER_MARK", "16")
	t.Setenv("RATE_BURST", "7")

	cfg, err := loadConfig([]string{"--config", path, "--workers", "2"})
	require.NoError(t, err)

	assert.Equal(t, []string{":7001", ":7002"}, cfg.ListenAddrs, "from file")
	assert.Equal(t, "http://file:9000", cfg.UpstreamURL, "from file")
	assert.Equal(t, 16, cfg.HighWaterMark, "env wins over file")
	assert.Equal(t, 2, cfg.Workers, "flag wins over file")
	assert.Equal(t, 250*time.Millisecond, cfg.OverloadLogEvery)
	assert.True(t, cfg.Rate.Enabled)
	assert.Equal(t, 5.0, cfg.Rate.RPS)
	assert.Equal(t, 7, cfg.Rate.Burst)
}

func TestLoadConfig_ListenAddrsFromEnv(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://127.0.0.1:9000")
	t.Setenv("LISTEN_ADDRS", " :8080, ,:8443 ")

	cfg, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{":8080", ":8443"}, cfg.ListenAddrs)
}

func TestLoadConfig_LowRPSDefaultsBurstToOne(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://127.0.0.1:9000")
	t.Setenv("RATE_ENABLED", "true")
	t.Setenv("RATE_RPS", "0.02")

	cfg, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Rate.Burst)
}

func TestLoadConfig_ReportsAllErrors(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "")
	t.Setenv("STATS_ENABLED", "true")

	_, err := loadConfig([]string{"--high-water-mark", "-1", "--log-level", "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPSTREAM_URL is required")
	assert.Contains(t, err.Error(), "HIGH_WATER_MARK must be > 0")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "STATS_REDIS_ADDR is required")
}

func TestLoadConfig_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addrs = ["), 0o600))

	_, err := loadConfig([]string{"--config", path})
	assert.ErrorContains(t, err, "read config")
}
