package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
app:
  env: prod
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 100, cfg.Market.MaxHistory)
	assert.Equal(t, 1_000.0, cfg.Routing.SmallMaxUSD)
	assert.Equal(t, 10_000.0, cfg.Routing.LargeMinUSD)
	assert.Equal(t, 1_000.0, cfg.Instant.SkipMEVThresholdUSD)
	assert.Equal(t, 10_000.0, cfg.Stealth.ProtectedMinUSD)
	assert.Equal(t, 100_000.0, cfg.Stealth.MaximumMinUSD)
	assert.True(t, cfg.Stealth.RandomizeTiming)
	assert.Equal(t, 3, cfg.FaultTolerance.MaxRetries)
	assert.Equal(t, "USDC", cfg.Trading.Settlement)
	assert.Equal(t, 1.0, cfg.Trading.DefaultTolerancePct)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
app:
  log_level: debug
routing:
  small_max_usd: 250
  large_min_usd: 5000
trading:
  settlement: USDT
  max_daily_trades: 20
stealth:
  randomize_timing: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 250.0, cfg.Routing.SmallMaxUSD)
	assert.Equal(t, 5_000.0, cfg.Routing.LargeMinUSD)
	assert.Equal(t, "USDT", cfg.Trading.Settlement)
	assert.Equal(t, 20, cfg.Trading.MaxDailyTrades)
	// An explicit false must survive defaulting.
	assert.False(t, cfg.Stealth.RandomizeTiming)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
app:
  log_level: warn
routing:
  small_max_usd: 500
`)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
routing:
  small_max_usd: 750
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	// The including file wins on conflicts, the include fills the rest.
	assert.Equal(t, 750.0, cfg.Routing.SmallMaxUSD)
	assert.Equal(t, "warn", cfg.App.LogLevel)
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	writeConfig(t, dir, "b.yaml", "include:\n  - a.yaml\n")

	_, err := Load(filepath.Join(dir, "a.yaml"))
	assert.ErrorContains(t, err, "include cycle")
}

func TestLoadValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad log level",
			yaml:    "app:\n  log_level: verbose\n",
			wantErr: "app.log_level",
		},
		{
			name:    "routing thresholds inverted",
			yaml:    "routing:\n  small_max_usd: 50000\n  large_min_usd: 10000\n",
			wantErr: "routing.small_max_usd",
		},
		{
			name:    "stealth tiers out of order",
			yaml:    "stealth:\n  protected_min_usd: 90000\n  private_min_usd: 50000\n",
			wantErr: "stealth tiers",
		},
		{
			name:    "empty fallback target",
			yaml:    "fault_tolerance:\n  fallback_targets:\n    - \"  \"\n",
			wantErr: "fallback_targets",
		},
		{
			name:    "negative daily trades",
			yaml:    "trading:\n  max_daily_trades: -1\n",
			wantErr: "max_daily_trades",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", tc.yaml)
			_, err := Load(path)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.ErrorContains(t, err, "config path cannot be empty")
}
