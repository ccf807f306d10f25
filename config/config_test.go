package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestGetYaml(t *testing.T) {
	path := writeConfig(t, `
endpoint: http://127.0.0.1:9000
listen_addr: ":8099"
poll_interval: 2s
accounts:
  - binance-only
  - chainlink-only
  - dual-confirmation
chart:
  point_ceiling: 1500
  keep_recent: 200
health:
  warn_after: 45s
  bad_after: 3m
history:
  dir: historydata
refprice:
  platform: binance
`)

	cfg, err := getYaml(path)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9000", cfg.Endpoint)
	require.Equal(t, ":8099", cfg.ListenAddr)
	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, []string{"binance-only", "chainlink-only", "dual-confirmation"}, cfg.Accounts)
	require.Equal(t, 1500, cfg.Chart.PointCeiling)
	require.Equal(t, 200, cfg.Chart.KeepRecent)
	require.Equal(t, 45*time.Second, cfg.Health.WarnAfter)
	require.Equal(t, "binance", cfg.RefPrice.Platform)
}

func TestGetYamlDefaults(t *testing.T) {
	cfg, err := getYaml(writeConfig(t, "endpoint: http://localhost:9000\n"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, 2000, cfg.Chart.PointCeiling)
	require.Equal(t, 300, cfg.Chart.KeepRecent)
	require.Equal(t, 30*time.Second, cfg.Health.WarnAfter)
	require.Equal(t, 2*time.Minute, cfg.Health.BadAfter)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestGetYamlErrors(t *testing.T) {
	cases := map[string]string{
		"missing endpoint":    "listen_addr: \":8080\"\n",
		"bad endpoint":        "endpoint: not-a-url\n",
		"bad refprice":        "endpoint: http://localhost:9000\nrefprice:\n  platform: kraken\n",
		"keep_recent too big": "endpoint: http://localhost:9000\nchart:\n  point_ceiling: 100\n  keep_recent: 200\n",
		"bad thresholds":      "endpoint: http://localhost:9000\nhealth:\n  warn_after: 2m\n  bad_after: 30s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := getYaml(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}
