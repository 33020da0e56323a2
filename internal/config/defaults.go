package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppLogPath  = "/data/logs/ordex.log"

	defaultMarketMaxHistory = 100

	defaultRoutingSmallMaxUSD = 1_000
	defaultRoutingLargeMinUSD = 10_000

	defaultInstantPriceTTL       = 5
	defaultInstantRouteTTL       = 10
	defaultInstantSkipMEVUSD     = 1_000
	defaultInstantSlippagePct    = 0.5
	defaultInstantMEVRiskCutoff  = 0.7
	defaultInstantLatencySamples = 100

	defaultStealthProtectedUSD = 10_000
	defaultStealthPrivateUSD   = 50_000
	defaultStealthMaximumUSD   = 100_000
	defaultStealthSplitUSD     = 10_000
	defaultStealthMaxChunks    = 5
	defaultStealthChunkDelayMs = 2_000
	defaultStealthJitterMs     = 1_000

	defaultFTMaxRetries       = 3
	defaultFTRetryDelayMs     = 500
	defaultFTCallTimeoutSec   = 10
	defaultFTCircuitThreshold = 5
	defaultFTCircuitResetSec  = 60

	defaultTradingSettlement   = "USDC"
	defaultTradingTolerancePct = 1
	defaultStorePath           = "/data/db/ordex.db"
	defaultJournalPath         = "/data/db/ordex_journal.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Routing.applyDefaults(keys)
	c.Instant.applyDefaults(keys)
	c.Stealth.applyDefaults(keys)
	c.FaultTolerance.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "market.max_history",
			need:  func() bool { return m.MaxHistory <= 0 },
			apply: func() { m.MaxHistory = defaultMarketMaxHistory },
		},
	)
}

func (r *RoutingConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "routing.small_max_usd",
			need:  func() bool { return r.SmallMaxUSD <= 0 },
			apply: func() { r.SmallMaxUSD = defaultRoutingSmallMaxUSD },
		},
		fieldDefault{
			key:   "routing.large_min_usd",
			need:  func() bool { return r.LargeMinUSD <= 0 },
			apply: func() { r.LargeMinUSD = defaultRoutingLargeMinUSD },
		},
	)
}

func (i *InstantConfig) applyDefaults(keys keySet) {
	if i == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "instant.price_cache_ttl_seconds",
			need:  func() bool { return i.PriceCacheTTLSeconds <= 0 },
			apply: func() { i.PriceCacheTTLSeconds = defaultInstantPriceTTL },
		},
		fieldDefault{
			key:   "instant.route_cache_ttl_seconds",
			need:  func() bool { return i.RouteCacheTTLSeconds <= 0 },
			apply: func() { i.RouteCacheTTLSeconds = defaultInstantRouteTTL },
		},
		fieldDefault{
			key:   "instant.skip_mev_threshold_usd",
			need:  func() bool { return i.SkipMEVThresholdUSD <= 0 },
			apply: func() { i.SkipMEVThresholdUSD = defaultInstantSkipMEVUSD },
		},
		fieldDefault{
			key:   "instant.default_slippage_pct",
			need:  func() bool { return i.DefaultSlippagePct <= 0 },
			apply: func() { i.DefaultSlippagePct = defaultInstantSlippagePct },
		},
		fieldDefault{
			key:   "instant.mev_risk_cutoff",
			need:  func() bool { return i.MEVRiskCutoff <= 0 },
			apply: func() { i.MEVRiskCutoff = defaultInstantMEVRiskCutoff },
		},
		fieldDefault{
			key:   "instant.latency_samples",
			need:  func() bool { return i.LatencySamples <= 0 },
			apply: func() { i.LatencySamples = defaultInstantLatencySamples },
		},
	)
}

func (s *StealthConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "stealth.protected_min_usd",
			need:  func() bool { return s.ProtectedMinUSD <= 0 },
			apply: func() { s.ProtectedMinUSD = defaultStealthProtectedUSD },
		},
		fieldDefault{
			key:   "stealth.private_min_usd",
			need:  func() bool { return s.PrivateMinUSD <= 0 },
			apply: func() { s.PrivateMinUSD = defaultStealthPrivateUSD },
		},
		fieldDefault{
			key:   "stealth.maximum_min_usd",
			need:  func() bool { return s.MaximumMinUSD <= 0 },
			apply: func() { s.MaximumMinUSD = defaultStealthMaximumUSD },
		},
		fieldDefault{
			key:   "stealth.split_threshold_usd",
			need:  func() bool { return s.SplitThresholdUSD <= 0 },
			apply: func() { s.SplitThresholdUSD = defaultStealthSplitUSD },
		},
		fieldDefault{
			key:   "stealth.max_chunks",
			need:  func() bool { return s.MaxChunks <= 0 },
			apply: func() { s.MaxChunks = defaultStealthMaxChunks },
		},
		fieldDefault{
			key:   "stealth.chunk_base_delay_ms",
			need:  func() bool { return s.ChunkBaseDelayMs <= 0 },
			apply: func() { s.ChunkBaseDelayMs = defaultStealthChunkDelayMs },
		},
		fieldDefault{
			key:   "stealth.chunk_jitter_ms",
			need:  func() bool { return s.ChunkJitterMs <= 0 },
			apply: func() { s.ChunkJitterMs = defaultStealthJitterMs },
		},
		boolFieldDefault("stealth.randomize_timing", &s.RandomizeTiming, true),
	)
}

func (f *FaultToleranceConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "fault_tolerance.max_retries",
			need:  func() bool { return f.MaxRetries <= 0 },
			apply: func() { f.MaxRetries = defaultFTMaxRetries },
		},
		fieldDefault{
			key:   "fault_tolerance.retry_delay_ms",
			need:  func() bool { return f.RetryDelayMs <= 0 },
			apply: func() { f.RetryDelayMs = defaultFTRetryDelayMs },
		},
		fieldDefault{
			key:   "fault_tolerance.call_timeout_seconds",
			need:  func() bool { return f.CallTimeoutSeconds <= 0 },
			apply: func() { f.CallTimeoutSeconds = defaultFTCallTimeoutSec },
		},
		fieldDefault{
			key:   "fault_tolerance.circuit_breaker_threshold",
			need:  func() bool { return f.CircuitBreakerThreshold <= 0 },
			apply: func() { f.CircuitBreakerThreshold = defaultFTCircuitThreshold },
		},
		fieldDefault{
			key:   "fault_tolerance.circuit_reset_seconds",
			need:  func() bool { return f.CircuitResetSeconds <= 0 },
			apply: func() { f.CircuitResetSeconds = defaultFTCircuitResetSec },
		},
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trading.settlement", &t.Settlement, defaultTradingSettlement),
		fieldDefault{
			key:   "trading.default_tolerance_pct",
			need:  func() bool { return t.DefaultTolerancePct <= 0 },
			apply: func() { t.DefaultTolerancePct = defaultTradingTolerancePct },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
		stringFieldDefault("store.journal_path", &s.JournalPath, defaultJournalPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
