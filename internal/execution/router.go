package execution

import (
	"sync"

	"ordex/internal/logger"
	"ordex/internal/pkg/trading"
)

// PriceSource supplies the latest known price for notional estimation.
type PriceSource interface {
	LatestPrice(instrument string) float64
}

// RouterConfig carries the notional thresholds, in USD, that divide the
// execution paths. Values come from configuration and may be hot-reloaded.
type RouterConfig struct {
	SmallMaxUSD float64
	LargeMinUSD float64
}

// Decision is the router's verdict. It is always concrete; routing never
// blocks or performs IO beyond a local price read.
type Decision struct {
	Path         Path
	SkipMEVCheck bool
	Privacy      string
	SplitOrder   bool
	NotionalUSD  float64
}

// Router picks instant, protected-instant or stealth execution from the
// estimated notional value of a trade.
type Router struct {
	mu     sync.RWMutex
	cfg    RouterConfig
	prices PriceSource
}

func NewRouter(cfg RouterConfig, prices PriceSource) *Router {
	return &Router{cfg: cfg, prices: prices}
}

// UpdateConfig swaps the thresholds; in-flight decisions keep the old ones.
func (r *Router) UpdateConfig(cfg RouterConfig) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	logger.Infof("router: thresholds updated small_max=%.2f large_min=%.2f", cfg.SmallMaxUSD, cfg.LargeMinUSD)
}

// Route decides the execution path for a trade. An unknown price yields zero
// notional, which routes to the instant path with the MEV check left on.
func (r *Router) Route(instrumentIn, instrumentOut string, amount float64) Decision {
	r.mu.RLock()
	cfg := r.cfg
	r.mu.RUnlock()

	price := r.prices.LatestPrice(instrumentIn)
	notional := trading.Notional(amount, price)

	dec := Decision{NotionalUSD: notional, Privacy: PrivacyStandard}
	switch {
	case price > 0 && notional < cfg.SmallMaxUSD:
		dec.Path = PathInstant
		dec.SkipMEVCheck = true
	case notional >= cfg.LargeMinUSD && cfg.LargeMinUSD > 0:
		dec.Path = PathStealth
		dec.Privacy = PrivacyMaximum
		dec.SplitOrder = true
	default:
		dec.Path = PathInstant
	}
	logger.Debugf("router: %s->%s amount=%.6f notional=%.2f path=%s skip_mev=%v",
		instrumentIn, instrumentOut, amount, notional, dec.Path, dec.SkipMEVCheck)
	return dec
}
