// ABOUTME: Trust cache configuration stored at XDG paths
// ABOUTME: JSON config file with defaults, TRUSTCACHE_* environment overrides, and validation
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"github.com/harperreed/trustcache/charm"
	"github.com/harperreed/trustcache/sync"
)

const (
	DefaultTrustSignalExpiry       = 24 * time.Hour
	DefaultHitRateWarningThreshold = 0.7
	DefaultMemoryCacheEntries      = 10000
	DefaultSyncInterval            = 30 * time.Minute
)

// Duration is a time.Duration written as "24h" in JSON.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

type GoogleConfig struct {
	Enabled   bool   `json:"enabled"`
	TokenPath string `json:"token_path,omitempty"`
}

type CharmConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host,omitempty"`
	AutoSync bool   `json:"auto_sync"`
}

// Config holds all trust cache settings.
type Config struct {
	DBPath                  string       `json:"db_path,omitempty"`
	CachingEnabled          bool         `json:"caching_enabled"`
	TrustSignalExpiry       Duration     `json:"trust_signal_expiry"`
	HitRateWarningThreshold float64      `json:"hit_rate_warning_threshold"`
	MemoryCacheEntries      int64        `json:"memory_cache_entries"`
	ParallelFetch           bool         `json:"parallel_fetch"`
	SyncInterval            Duration     `json:"sync_interval"`
	LogLevel                string       `json:"log_level,omitempty"`
	Google                  GoogleConfig `json:"google"`
	Charm                   CharmConfig  `json:"charm"`
}

// Dir returns the XDG config directory for trustcache.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, "trustcache")
}

// Path returns the default config file path.
func Path() string {
	return filepath.Join(Dir(), "config.json")
}

// DefaultDBPath returns the XDG data path of the SQLite cache.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "trustcache", "trustcache.db")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DBPath:                  DefaultDBPath(),
		CachingEnabled:          true,
		TrustSignalExpiry:       Duration{DefaultTrustSignalExpiry},
		HitRateWarningThreshold: DefaultHitRateWarningThreshold,
		MemoryCacheEntries:      DefaultMemoryCacheEntries,
		ParallelFetch:           true,
		SyncInterval:            Duration{DefaultSyncInterval},
		LogLevel:                "info",
		Google: GoogleConfig{
			Enabled:   true,
			TokenPath: sync.TokenPath(),
		},
		Charm: CharmConfig{
			Host:     charm.DefaultCharmHost,
			AutoSync: true,
		},
	}
}

// Load reads the config at Path().
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config at path. A missing file yields the defaults.
// Environment variables override file values:
// - TRUSTCACHE_DB_PATH
// - TRUSTCACHE_CACHING_ENABLED
// - TRUSTCACHE_TRUST_SIGNAL_EXPIRY
// - TRUSTCACHE_HIT_RATE_WARNING_THRESHOLD
// - TRUSTCACHE_MEMORY_CACHE_ENTRIES
// - TRUSTCACHE_PARALLEL_FETCH
// - TRUSTCACHE_SYNC_INTERVAL
// - TRUSTCACHE_LOG_LEVEL
// - TRUSTCACHE_GOOGLE_ENABLED, TRUSTCACHE_GOOGLE_TOKEN_PATH
// - TRUSTCACHE_CHARM_ENABLED, TRUSTCACHE_CHARM_HOST.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer func() { _ = f.Close() }()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("TRUSTCACHE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TRUSTCACHE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TRUSTCACHE_GOOGLE_TOKEN_PATH"); v != "" {
		cfg.Google.TokenPath = v
	}
	if v := os.Getenv("TRUSTCACHE_CHARM_HOST"); v != "" {
		cfg.Charm.Host = v
	}

	bools := map[string]*bool{
		"TRUSTCACHE_CACHING_ENABLED": &cfg.CachingEnabled,
		"TRUSTCACHE_PARALLEL_FETCH":  &cfg.ParallelFetch,
		"TRUSTCACHE_GOOGLE_ENABLED":  &cfg.Google.Enabled,
		"TRUSTCACHE_CHARM_ENABLED":   &cfg.Charm.Enabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = b
		}
	}

	durations := map[string]*Duration{
		"TRUSTCACHE_TRUST_SIGNAL_EXPIRY": &cfg.TrustSignalExpiry,
		"TRUSTCACHE_SYNC_INTERVAL":       &cfg.SyncInterval,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			dst.Duration = d
		}
	}

	if v := os.Getenv("TRUSTCACHE_HIT_RATE_WARNING_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TRUSTCACHE_HIT_RATE_WARNING_THRESHOLD %q: %w", v, err)
		}
		cfg.HitRateWarningThreshold = f
	}
	if v := os.Getenv("TRUSTCACHE_MEMORY_CACHE_ENTRIES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TRUSTCACHE_MEMORY_CACHE_ENTRIES %q: %w", v, err)
		}
		cfg.MemoryCacheEntries = n
	}

	return nil
}

// Validate rejects settings the cache cannot run with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.TrustSignalExpiry.Duration <= 0 {
		return fmt.Errorf("trust_signal_expiry must be positive, got %s", c.TrustSignalExpiry)
	}
	if c.HitRateWarningThreshold < 0 || c.HitRateWarningThreshold > 1 {
		return fmt.Errorf("hit_rate_warning_threshold must be 0-1, got %f", c.HitRateWarningThreshold)
	}
	if c.MemoryCacheEntries < 0 {
		return fmt.Errorf("memory_cache_entries must not be negative, got %d", c.MemoryCacheEntries)
	}
	if c.SyncInterval.Duration < sync.MinSyncInterval {
		return fmt.Errorf("sync_interval must be at least %s, got %s", sync.MinSyncInterval, c.SyncInterval)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return nil
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Save writes the config to Path().
func Save(cfg *Config) error {
	return SaveTo(cfg, Path())
}

// SaveTo writes the config to path with restricted permissions.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
