package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Routing.validate(); err != nil {
		return err
	}
	if err := c.Stealth.validate(); err != nil {
		return err
	}
	if err := c.FaultTolerance.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", a.LogLevel)
	}
}

func (r *RoutingConfig) validate() error {
	if r.SmallMaxUSD > r.LargeMinUSD {
		return fmt.Errorf("routing.small_max_usd (%.2f) cannot exceed routing.large_min_usd (%.2f)", r.SmallMaxUSD, r.LargeMinUSD)
	}
	return nil
}

func (s *StealthConfig) validate() error {
	if s.ProtectedMinUSD > s.PrivateMinUSD || s.PrivateMinUSD > s.MaximumMinUSD {
		return fmt.Errorf("stealth tiers must be ordered: protected (%.2f) <= private (%.2f) <= maximum (%.2f)",
			s.ProtectedMinUSD, s.PrivateMinUSD, s.MaximumMinUSD)
	}
	if s.MaxChunks > 50 {
		return fmt.Errorf("stealth.max_chunks is unreasonably large: %d", s.MaxChunks)
	}
	return nil
}

func (f *FaultToleranceConfig) validate() error {
	for _, t := range f.FallbackTargets {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("fault_tolerance.fallback_targets contains an empty entry")
		}
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if strings.TrimSpace(t.Settlement) == "" {
		return fmt.Errorf("trading.settlement cannot be empty")
	}
	if t.MaxDailyTrades < 0 {
		return fmt.Errorf("trading.max_daily_trades cannot be negative")
	}
	if t.MaxPositionNotionalUSD < 0 {
		return fmt.Errorf("trading.max_position_notional_usd cannot be negative")
	}
	return nil
}
