package config

import "strings"

// Config is the root configuration of an ordex instance.
type Config struct {
	App            AppConfig            `toml:"app"`
	Market         MarketConfig         `toml:"market"`
	Routing        RoutingConfig        `toml:"routing"`
	Instant        InstantConfig        `toml:"instant"`
	Stealth        StealthConfig        `toml:"stealth"`
	FaultTolerance FaultToleranceConfig `toml:"fault_tolerance"`
	Trading        TradingConfig        `toml:"trading"`
	Store          StoreConfig          `toml:"store"`
}

type AppConfig struct {
	Env         string `toml:"env"`
	LogLevel    string `toml:"log_level"`
	LogPath     string `toml:"log_path"`
	MetricsAddr string `toml:"metrics_addr"`
}

type MarketConfig struct {
	MaxHistory int `toml:"max_history"`
}

// RoutingConfig holds the notional thresholds dividing the execution paths.
// This section is hot-reloadable, see Watcher.
type RoutingConfig struct {
	SmallMaxUSD float64 `toml:"small_max_usd"`
	LargeMinUSD float64 `toml:"large_min_usd"`
}

type InstantConfig struct {
	PriceCacheTTLSeconds int     `toml:"price_cache_ttl_seconds"`
	RouteCacheTTLSeconds int     `toml:"route_cache_ttl_seconds"`
	SkipMEVThresholdUSD  float64 `toml:"skip_mev_threshold_usd"`
	DefaultSlippagePct   float64 `toml:"default_slippage_pct"`
	MEVRiskCutoff        float64 `toml:"mev_risk_cutoff"`
	LatencySamples       int     `toml:"latency_samples"`
}

type StealthConfig struct {
	ProtectedMinUSD   float64 `toml:"protected_min_usd"`
	PrivateMinUSD     float64 `toml:"private_min_usd"`
	MaximumMinUSD     float64 `toml:"maximum_min_usd"`
	SplitThresholdUSD float64 `toml:"split_threshold_usd"`
	MaxChunks         int     `toml:"max_chunks"`
	ChunkBaseDelayMs  int     `toml:"chunk_base_delay_ms"`
	ChunkJitterMs     int     `toml:"chunk_jitter_ms"`
	RandomizeTiming   bool    `toml:"randomize_timing"`
}

type FaultToleranceConfig struct {
	MaxRetries              int      `toml:"max_retries"`
	RetryDelayMs            int      `toml:"retry_delay_ms"`
	CallTimeoutSeconds      int      `toml:"call_timeout_seconds"`
	CircuitBreakerThreshold int      `toml:"circuit_breaker_threshold"`
	CircuitResetSeconds     int      `toml:"circuit_reset_seconds"`
	FallbackTargets         []string `toml:"fallback_targets"`
}

// TradingConfig carries the engine-level guards applied to every trade
// regardless of which module requested it.
type TradingConfig struct {
	Settlement             string  `toml:"settlement"`
	MaxDailyTrades         int     `toml:"max_daily_trades"`
	MaxPositionNotionalUSD float64 `toml:"max_position_notional_usd"`
	DefaultTolerancePct    float64 `toml:"default_tolerance_pct"`
}

type StoreConfig struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	JournalPath string `toml:"journal_path"`
}

// keySet tracks which field paths were explicitly set in the config files,
// so defaults never overwrite a deliberate zero.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault is one field's defaulting rule.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
