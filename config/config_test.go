// ABOUTME: Tests for trust cache configuration loading
// ABOUTME: Covers XDG paths, defaults, file round trips, env overrides, and validation
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	assert.True(t, strings.HasPrefix(Path(), filepath.Join(xdg.ConfigHome, "trustcache")))
	assert.Equal(t, "config.json", filepath.Base(Path()))
}

func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.True(t, cfg.CachingEnabled)
	assert.Equal(t, 24*time.Hour, cfg.TrustSignalExpiry.Duration)
	assert.Equal(t, 0.7, cfg.HitRateWarningThreshold)
	assert.Equal(t, int64(10000), cfg.MemoryCacheEntries)
	assert.True(t, cfg.ParallelFetch)
	assert.Equal(t, 30*time.Minute, cfg.SyncInterval.Duration)
	assert.True(t, cfg.Google.Enabled)
	assert.False(t, cfg.Charm.Enabled)
	assert.Equal(t, "charm.2389.dev", cfg.Charm.Host)
	assert.Equal(t, DefaultDBPath(), cfg.DBPath)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.DBPath = "/tmp/elsewhere.db"
	cfg.TrustSignalExpiry = Duration{6 * time.Hour}
	cfg.SyncInterval = Duration{5 * time.Minute}
	cfg.Charm.Enabled = true
	require.NoError(t, SaveTo(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"trust_signal_expiry": "6h0m0s"`)

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"caching_enabled": false, "sync_interval": "2m"}`), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.False(t, cfg.CachingEnabled)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval.Duration)
	assert.Equal(t, 24*time.Hour, cfg.TrustSignalExpiry.Duration)
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sync_interval": 30}`), 0600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRUSTCACHE_DB_PATH", "/var/lib/trust.db")
	t.Setenv("TRUSTCACHE_CACHING_ENABLED", "false")
	t.Setenv("TRUSTCACHE_TRUST_SIGNAL_EXPIRY", "1h")
	t.Setenv("TRUSTCACHE_HIT_RATE_WARNING_THRESHOLD", "0.5")
	t.Setenv("TRUSTCACHE_MEMORY_CACHE_ENTRIES", "0")
	t.Setenv("TRUSTCACHE_PARALLEL_FETCH", "0")
	t.Setenv("TRUSTCACHE_SYNC_INTERVAL", "10m")
	t.Setenv("TRUSTCACHE_LOG_LEVEL", "debug")
	t.Setenv("TRUSTCACHE_GOOGLE_ENABLED", "false")
	t.Setenv("TRUSTCACHE_CHARM_ENABLED", "true")
	t.Setenv("TRUSTCACHE_CHARM_HOST", "charm.example.com")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/trust.db", cfg.DBPath)
	assert.False(t, cfg.CachingEnabled)
	assert.Equal(t, time.Hour, cfg.TrustSignalExpiry.Duration)
	assert.Equal(t, 0.5, cfg.HitRateWarningThreshold)
	assert.Zero(t, cfg.MemoryCacheEntries)
	assert.False(t, cfg.ParallelFetch)
	assert.Equal(t, 10*time.Minute, cfg.SyncInterval.Duration)
	assert.Equal(t, log.DebugLevel, cfg.Level())
	assert.False(t, cfg.Google.Enabled)
	assert.True(t, cfg.Charm.Enabled)
	assert.Equal(t, "charm.example.com", cfg.Charm.Host)
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("TRUSTCACHE_CACHING_ENABLED", "sometimes")

	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRUSTCACHE_CACHING_ENABLED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero expiry", func(c *Config) { c.TrustSignalExpiry = Duration{} }},
		{"threshold above one", func(c *Config) { c.HitRateWarningThreshold = 1.5 }},
		{"negative entries", func(c *Config) { c.MemoryCacheEntries = -1 }},
		{"interval below minimum", func(c *Config) { c.SyncInterval = Duration{30 * time.Second} }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tt.name)
			}
		})
	}

	assert.NoError(t, Default().Validate())
}
