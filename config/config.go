// Package config loads dashboard configuration from a YAML file or
// command-line flags.
package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LogConfig zap/lumberjack settings.
type LogConfig struct {
	// Level one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Output console, file or both.
	Output string `yaml:"output"`
	// File log file path when output includes file.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ChartConfig equity chart adapter settings.
type ChartConfig struct {
	// PointCeiling max points delivered in an initial backfill.
	PointCeiling int `yaml:"point_ceiling"`
	// KeepRecent newest points that are never thinned.
	KeepRecent int `yaml:"keep_recent"`
}

// HealthConfig staleness thresholds for derived health statuses.
type HealthConfig struct {
	WarnAfter time.Duration `yaml:"warn_after"`
	BadAfter  time.Duration `yaml:"bad_after"`
}

// HistoryConfig on-disk equity history settings.
type HistoryConfig struct {
	// Dir WAL directory; empty disables persistence.
	Dir string `yaml:"dir"`
}

// RefPriceConfig optional exchange cross-check of backend prices.
type RefPriceConfig struct {
	// Platform binance, bybit or hyperliquid; empty disables the check.
	Platform string `yaml:"platform"`
}

// TLSConfig automatic ACME certificates for the dashboard.
type TLSConfig struct {
	Domains  []string `yaml:"domains"`
	CacheDir string   `yaml:"cache_dir"`
}

// Config all dashboard settings.
type Config struct {
	// Endpoint base URL of the bot backend, e.g. http://127.0.0.1:9000.
	Endpoint string `yaml:"endpoint"`
	// ListenAddr address the dashboard HTTP server binds to.
	ListenAddr string `yaml:"listen_addr"`
	// PollInterval cadence of GET /api/state.
	PollInterval time.Duration `yaml:"poll_interval"`
	// Accounts preferred display order; unknown accounts sort after.
	Accounts []string       `yaml:"accounts"`
	Chart    ChartConfig    `yaml:"chart"`
	Health   HealthConfig   `yaml:"health"`
	History  HistoryConfig  `yaml:"history"`
	RefPrice RefPriceConfig `yaml:"refprice"`
	TLS      TLSConfig      `yaml:"tls"`
	Log      LogConfig      `yaml:"log"`
}

const (
	defaultPollInterval = 2 * time.Second
	defaultPointCeiling = 2000
	defaultKeepRecent   = 300
	defaultWarnAfter    = 30 * time.Second
	defaultBadAfter     = 2 * time.Minute
)

// Get reads configuration from --config when provided, otherwise from
// the remaining CLI flags.
func Get() (*Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	endpoint := flag.String("endpoint", "http://127.0.0.1:9000", "bot backend base URL")
	listen := flag.String("listen", ":8080", "dashboard listen address")
	pollInterval := flag.Duration("pollinterval", defaultPollInterval, "state poll interval")
	historyDir := flag.String("historydir", "historydata", "equity history WAL dir, empty disables")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	cfg := &Config{
		Endpoint:     *endpoint,
		ListenAddr:   *listen,
		PollInterval: *pollInterval,
		History:      HistoryConfig{Dir: *historyDir},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getYaml(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return nil, fmt.Errorf("incorrect yaml config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("'endpoint' param is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("incorrect 'endpoint' param: %s", c.Endpoint)
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Chart.PointCeiling <= 0 {
		c.Chart.PointCeiling = defaultPointCeiling
	}
	if c.Chart.KeepRecent <= 0 {
		c.Chart.KeepRecent = defaultKeepRecent
	}
	if c.Chart.KeepRecent > c.Chart.PointCeiling {
		return fmt.Errorf("'chart.keep_recent' (%d) must not exceed 'chart.point_ceiling' (%d)",
			c.Chart.KeepRecent, c.Chart.PointCeiling)
	}
	if c.Health.WarnAfter <= 0 {
		c.Health.WarnAfter = defaultWarnAfter
	}
	if c.Health.BadAfter <= 0 {
		c.Health.BadAfter = defaultBadAfter
	}
	if c.Health.BadAfter < c.Health.WarnAfter {
		return fmt.Errorf("'health.bad_after' must be >= 'health.warn_after'")
	}
	switch c.RefPrice.Platform {
	case "", "binance", "bybit", "hyperliquid":
	default:
		return fmt.Errorf("unsupported 'refprice.platform': %s", c.RefPrice.Platform)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Output == "" {
		c.Log.Output = "console"
	}
	return nil
}
