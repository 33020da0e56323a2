package execution

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ordex/internal/capability"
	"ordex/internal/events"
	"ordex/internal/logger"
	"ordex/internal/metrics"
	"ordex/internal/pkg/trading"
)

// InstantConfig tunes the low-latency path.
type InstantConfig struct {
	PriceCacheTTL       time.Duration
	RouteCacheTTL       time.Duration
	SkipMEVThresholdUSD float64
	DefaultSlippagePct  float64
	MEVRiskCutoff       float64
	LatencySamples      int
}

// SwapOptions lets callers override per-trade behavior. A nil SkipMEVCheck
// defers to the notional threshold.
type SwapOptions struct {
	SkipMEVCheck *bool
	Privacy      string
	SlippagePct  float64
}

type cachedPrice struct {
	price float64
	at    time.Time
}

type cachedRoute struct {
	route string
	at    time.Time
}

// InstantEngine is the low-latency execution path. It keeps seconds-scale
// price and route caches so the happy path costs a single swap call.
type InstantEngine struct {
	cfg    InstantConfig
	client *capability.Client
	bus    *events.Bus
	lat    *latencyTracker

	mu     sync.Mutex
	prices map[string]cachedPrice
	routes map[string]cachedRoute
}

func NewInstantEngine(cfg InstantConfig, client *capability.Client, bus *events.Bus) *InstantEngine {
	if cfg.PriceCacheTTL <= 0 {
		cfg.PriceCacheTTL = 5 * time.Second
	}
	if cfg.RouteCacheTTL <= 0 {
		cfg.RouteCacheTTL = 10 * time.Second
	}
	if cfg.MEVRiskCutoff <= 0 {
		cfg.MEVRiskCutoff = 0.7
	}
	return &InstantEngine{
		cfg:    cfg,
		client: client,
		bus:    bus,
		lat:    newLatencyTracker(cfg.LatencySamples),
		prices: make(map[string]cachedPrice),
		routes: make(map[string]cachedRoute),
	}
}

func (e *InstantEngine) cachedPrice(instrument string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.prices[instrument]
	if !ok || time.Since(entry.at) > e.cfg.PriceCacheTTL {
		return 0, false
	}
	return entry.price, true
}

func (e *InstantEngine) storePrice(instrument string, price float64) {
	e.mu.Lock()
	e.prices[instrument] = cachedPrice{price: price, at: time.Now()}
	e.mu.Unlock()
}

func (e *InstantEngine) cachedRoute(pair string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.routes[pair]
	if !ok || time.Since(entry.at) > e.cfg.RouteCacheTTL {
		return "", false
	}
	return entry.route, true
}

func (e *InstantEngine) storeRoute(pair, route string) {
	if route == "" {
		return
	}
	e.mu.Lock()
	e.routes[pair] = cachedRoute{route: route, at: time.Now()}
	e.mu.Unlock()
}

// resolvePrice reads the cache, falling back to an inline lookup on miss.
// The miss also warms the settlement side asynchronously so the next trade
// on the pair starts hot.
func (e *InstantEngine) resolvePrice(ctx context.Context, instrumentIn, instrumentOut string) (float64, bool, error) {
	if price, ok := e.cachedPrice(instrumentIn); ok {
		return price, true, nil
	}
	quote, err := e.client.LookupPrice(ctx, instrumentIn)
	if err != nil {
		return 0, false, err
	}
	e.storePrice(instrumentIn, quote.PriceUSD)
	go func() {
		prefetchCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if q, err := e.client.LookupPrice(prefetchCtx, instrumentOut); err == nil {
			e.storePrice(instrumentOut, q.PriceUSD)
		}
	}()
	return quote.PriceUSD, false, nil
}

// InstantSwap executes a single trade on the fast path. A failure comes back
// as a failed result, not an error; retrying is the caller's business.
func (e *InstantEngine) InstantSwap(ctx context.Context, instrumentIn, instrumentOut string, amount float64, opts SwapOptions) InstantResult {
	start := time.Now()
	res := InstantResult{Result: Result{
		ID:            uuid.NewString(),
		InstrumentIn:  instrumentIn,
		InstrumentOut: instrumentOut,
		AmountIn:      amount,
		Strategy:      string(PathInstant),
		ExecutedAt:    start.UTC(),
	}}
	fail := func(reason string) InstantResult {
		res.Status = StatusFailed
		res.Reason = reason
		res.Latency = time.Since(start)
		e.finish(&res)
		return res
	}
	if amount <= 0 {
		return fail("amount must be positive")
	}

	price, priceHit, err := e.resolvePrice(ctx, instrumentIn, instrumentOut)
	if err != nil {
		return fail(err.Error())
	}
	res.PriceCacheHit = priceHit
	notional := trading.Notional(amount, price)

	skipMEV := notional < e.cfg.SkipMEVThresholdUSD
	if opts.SkipMEVCheck != nil {
		skipMEV = *opts.SkipMEVCheck
	}
	privacy := opts.Privacy
	if !skipMEV {
		res.MEVChecked = true
		if assessment, err := e.client.AnalyzeMEV(ctx, instrumentIn, instrumentOut, amount); err != nil {
			logger.Warnf("instant: mev analysis failed, proceeding unprotected: %v", err)
		} else if assessment.RiskScore >= e.cfg.MEVRiskCutoff {
			privacy = HigherPrivacy(privacy, PrivacyProtected)
			logger.Debugf("instant: mev risk %.2f >= %.2f, escalating to %s", assessment.RiskScore, e.cfg.MEVRiskCutoff, privacy)
		}
	}

	// A cached route is pinned onto the request so the venue skips route
	// discovery; a miss leaves it to the venue and the result warms the cache.
	pair := instrumentIn + "/" + instrumentOut
	route, routeHit := e.cachedRoute(pair)
	res.RouteCacheHit = routeHit
	slippage := opts.SlippagePct
	if slippage <= 0 {
		slippage = e.cfg.DefaultSlippagePct
	}
	outcome, err := e.client.ExecuteSwap(ctx, capability.SwapRequest{
		InstrumentIn:  instrumentIn,
		InstrumentOut: instrumentOut,
		Amount:        amount,
		SlippagePct:   slippage,
		Privacy:       privacy,
		SkipMEVCheck:  skipMEV,
		Route:         route,
	})
	if err != nil {
		return fail(err.Error())
	}
	e.storeRoute(pair, outcome.Route)

	res.Status = StatusExecuted
	res.AmountOut = outcome.AmountOut
	res.EffectivePrice = outcome.EffectivePrice
	res.Latency = time.Since(start)
	e.finish(&res)
	return res
}

func (e *InstantEngine) finish(res *InstantResult) {
	e.lat.Record(res.Latency)
	metrics.SwapLatency.WithLabelValues(res.Strategy).Observe(float64(res.Latency.Milliseconds()))
	metrics.TradesExecuted.WithLabelValues(res.Strategy, string(res.Status)).Inc()
	if e.bus != nil {
		e.bus.Publish(events.KindInstantSwapCompleted, events.TradeEvent{
			TradeID:       res.ID,
			InstrumentIn:  res.InstrumentIn,
			InstrumentOut: res.InstrumentOut,
			AmountIn:      res.AmountIn,
			AmountOut:     res.AmountOut,
			Status:        string(res.Status),
			Strategy:      res.Strategy,
		})
	}
}

// LatencyStats exposes the rolling round-trip statistics of this engine.
func (e *InstantEngine) LatencyStats() LatencyStats {
	return e.lat.Stats()
}

// RaceSwap runs the same trade down the plain path and the MEV-protected
// path concurrently and keeps whichever finishes first. The loser's result
// is discarded when it eventually lands.
func (e *InstantEngine) RaceSwap(ctx context.Context, instrumentIn, instrumentOut string, amount float64) RaceResult {
	type raced struct {
		path string
		res  InstantResult
	}
	skip := true
	noSkip := false
	paths := []struct {
		name string
		opts SwapOptions
	}{
		{name: "instant", opts: SwapOptions{SkipMEVCheck: &skip}},
		{name: "mev_protected", opts: SwapOptions{SkipMEVCheck: &noSkip, Privacy: PrivacyProtected}},
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := make(chan raced, len(paths))
	for _, p := range paths {
		p := p
		go func() {
			ch <- raced{path: p.name, res: e.InstantSwap(raceCtx, instrumentIn, instrumentOut, amount, p.opts)}
		}()
	}

	first := <-ch
	winner := RaceResult{Result: first.res.Result, WinningPath: first.path}
	winner.Strategy = "race"
	logger.Infof("race: %s->%s won by %s status=%s in %s",
		instrumentIn, instrumentOut, first.path, winner.Status, winner.Latency)
	return winner
}
