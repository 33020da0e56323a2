// Package engine is the coordination layer: it owns market state, the order
// books, the portfolio and the execution paths, and is the only place where
// a price tick turns into a trade. Books decide, the engine dispatches.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ordex/internal/capability"
	"ordex/internal/config"
	"ordex/internal/dca"
	"ordex/internal/events"
	"ordex/internal/execution"
	"ordex/internal/logger"
	"ordex/internal/market"
	"ordex/internal/metrics"
	"ordex/internal/orders"
	"ordex/internal/portfolio"
)

// Engine coordinates every module behind a single facade. All mutating entry
// points are safe for concurrent use.
type Engine struct {
	cfg *config.Config

	market     *market.State
	cond       *orders.ConditionalBook
	limits     *orders.LimitBook
	positions  *portfolio.Book
	dca        *dca.Scheduler
	router     *execution.Router
	instant    *execution.InstantEngine
	stealth    *execution.StealthEngine
	remote     *execution.RemoteExecutor
	rebalancer *portfolio.Rebalancer
	bus        *events.Bus
	client     *capability.Client

	mu          sync.Mutex
	tradesDay   string
	tradesToday int

	wg    sync.WaitGroup
	nowFn func() time.Time
}

// New wires an engine from configuration. inv serves local capability calls;
// remoteInv, which may be nil when agent-to-agent execution is unused,
// serves the fault-tolerant remote path.
func New(cfg *config.Config, inv capability.Invoker, remoteInv capability.RemoteInvoker) *Engine {
	bus := events.NewBus()
	client := capability.NewClient(inv)
	state := market.NewState(cfg.Market.MaxHistory)

	e := &Engine{
		cfg:       cfg,
		market:    state,
		cond:      orders.NewConditionalBook(),
		limits:    orders.NewLimitBook(),
		positions: portfolio.NewBook(),
		bus:       bus,
		client:    client,
		nowFn:     time.Now,
	}
	e.router = execution.NewRouter(execution.RouterConfig{
		SmallMaxUSD: cfg.Routing.SmallMaxUSD,
		LargeMinUSD: cfg.Routing.LargeMinUSD,
	}, state)
	e.instant = execution.NewInstantEngine(execution.InstantConfig{
		PriceCacheTTL:       time.Duration(cfg.Instant.PriceCacheTTLSeconds) * time.Second,
		RouteCacheTTL:       time.Duration(cfg.Instant.RouteCacheTTLSeconds) * time.Second,
		SkipMEVThresholdUSD: cfg.Instant.SkipMEVThresholdUSD,
		DefaultSlippagePct:  cfg.Instant.DefaultSlippagePct,
		MEVRiskCutoff:       cfg.Instant.MEVRiskCutoff,
		LatencySamples:      cfg.Instant.LatencySamples,
	}, client, bus)
	e.stealth = execution.NewStealthEngine(execution.StealthConfig{
		ProtectedMinUSD:   cfg.Stealth.ProtectedMinUSD,
		PrivateMinUSD:     cfg.Stealth.PrivateMinUSD,
		MaximumMinUSD:     cfg.Stealth.MaximumMinUSD,
		SplitThresholdUSD: cfg.Stealth.SplitThresholdUSD,
		MaxChunks:         cfg.Stealth.MaxChunks,
		ChunkBaseDelay:    time.Duration(cfg.Stealth.ChunkBaseDelayMs) * time.Millisecond,
		ChunkJitter:       time.Duration(cfg.Stealth.ChunkJitterMs) * time.Millisecond,
		RandomizeTiming:   cfg.Stealth.RandomizeTiming,
	}, client, state, bus)
	if remoteInv != nil {
		e.remote = execution.NewRemoteExecutor(execution.FaultToleranceConfig{
			MaxRetries:              cfg.FaultTolerance.MaxRetries,
			RetryDelay:              time.Duration(cfg.FaultTolerance.RetryDelayMs) * time.Millisecond,
			CallTimeout:             time.Duration(cfg.FaultTolerance.CallTimeoutSeconds) * time.Second,
			CircuitBreakerThreshold: cfg.FaultTolerance.CircuitBreakerThreshold,
			CircuitResetTimeout:     time.Duration(cfg.FaultTolerance.CircuitResetSeconds) * time.Second,
			FallbackTargets:         cfg.FaultTolerance.FallbackTargets,
		}, remoteInv)
	}
	e.dca = dca.NewScheduler(e, bus)
	e.rebalancer = portfolio.NewRebalancer(e.positions, e, client, bus, cfg.Trading.Settlement)
	return e
}

// UpdateRouting swaps the router thresholds, typically from a config watcher.
func (e *Engine) UpdateRouting(r config.RoutingConfig) {
	e.router.UpdateConfig(execution.RouterConfig{SmallMaxUSD: r.SmallMaxUSD, LargeMinUSD: r.LargeMinUSD})
}

// Bus exposes the event stream for subscribers.
func (e *Engine) Bus() *events.Bus { return e.bus }

// Market exposes read access to tick state.
func (e *Engine) Market() *market.State { return e.market }

// Positions exposes the portfolio book.
func (e *Engine) Positions() *portfolio.Book { return e.positions }

// RecordTick ingests a price observation, marks positions and evaluates both
// order books. Book evaluation is synchronous so an order can never fire
// twice; the resulting trades run on their own goroutines.
func (e *Engine) RecordTick(instrument string, price float64, at time.Time) error {
	tick, err := e.market.RecordTick(instrument, price, at)
	if err != nil {
		return err
	}
	e.positions.MarkPrice(tick.Instrument, tick.Price)

	fired, expired := e.cond.Evaluate(tick)
	for _, o := range expired {
		e.bus.Publish(events.KindOrderExpired, conditionalEvent(o, tick.Price))
	}
	for _, o := range fired {
		metrics.OrdersTriggered.WithLabelValues(string(o.Kind)).Inc()
		e.bus.Publish(events.KindOrderTriggered, conditionalEvent(o, tick.Price))
		logger.Infof("engine: %s %s fired at %.6f (trigger %.6f)", o.Kind, o.ID, tick.Price, o.TriggerPrice)
		e.dispatchConditional(o)
	}

	filled, limitExpired := e.limits.Evaluate(tick)
	for _, o := range limitExpired {
		e.bus.Publish(events.KindLimitOrderExpired, limitEvent(o, tick.Price))
	}
	for _, o := range filled {
		logger.Infof("engine: limit %s %s crossed at %.6f (limit %.6f)", o.Side, o.ID, tick.Price, o.LimitPrice)
		e.dispatchLimit(o, tick.Price)
	}
	return nil
}

func conditionalEvent(o orders.ConditionalOrder, price float64) events.OrderEvent {
	return events.OrderEvent{
		OrderID:      o.ID,
		OrderKind:    string(o.Kind),
		Instrument:   o.Instrument,
		Settlement:   o.Settlement,
		Amount:       o.Amount,
		TriggerPrice: o.TriggerPrice,
		MarketPrice:  price,
	}
}

func limitEvent(o orders.LimitOrder, price float64) events.LimitOrderEvent {
	return events.LimitOrderEvent{
		OrderID:     o.ID,
		Side:        string(o.Side),
		Instrument:  o.Instrument,
		Settlement:  o.Settlement,
		Amount:      o.Amount,
		LimitPrice:  o.LimitPrice,
		MarketPrice: price,
	}
}

// dispatchConditional sells the protected position through the routed path.
func (e *Engine) dispatchConditional(o orders.ConditionalOrder) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		res, err := e.Execute(ctx, o.Instrument, o.Settlement, o.Amount)
		if err != nil {
			logger.Errorf("engine: %s %s execution error: %v", o.Kind, o.ID, err)
			return
		}
		if !res.Succeeded() {
			logger.Warnf("engine: %s %s execution failed: %s", o.Kind, o.ID, res.Reason)
		}
	}()
}

// dispatchLimit executes a crossed limit order and records the fill.
func (e *Engine) dispatchLimit(o orders.LimitOrder, marketPrice float64) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		in, out := o.Instrument, o.Settlement
		amount := o.Amount
		if o.Side == orders.SideBuy {
			// Buy amount is denominated in the instrument; spend settlement.
			in, out = o.Settlement, o.Instrument
			amount = o.Amount * marketPrice
		}
		res, err := e.Execute(ctx, in, out, amount)
		if err != nil || !res.Succeeded() {
			reason := res.Reason
			if err != nil {
				reason = err.Error()
			}
			logger.Warnf("engine: limit %s execution failed: %s", o.ID, reason)
			return
		}
		fillPrice := res.EffectivePrice
		fillAmount := res.AmountOut
		if o.Side == orders.SideSell {
			fillAmount = res.AmountIn
		}
		if err := e.limits.RecordFill(o.ID, fillPrice, fillAmount); err != nil {
			logger.Warnf("engine: limit %s fill record failed: %v", o.ID, err)
		}
		e.bus.Publish(events.KindLimitOrderFilled, limitEvent(o, fillPrice))
	}()
}

// Execute runs one trade through the router and the chosen path, applying
// the engine-level trading guards first. Guard rejections come back as
// failed results so schedulers treat them like any other failed interval.
func (e *Engine) Execute(ctx context.Context, instrumentIn, instrumentOut string, amount float64) (execution.Result, error) {
	instrumentIn = market.Normalize(instrumentIn)
	instrumentOut = market.Normalize(instrumentOut)
	if amount <= 0 {
		return execution.Result{}, fmt.Errorf("engine: amount must be positive")
	}
	if reason := e.checkGuards(instrumentIn, instrumentOut, amount); reason != "" {
		logger.Warnf("engine: trade %s->%s rejected: %s", instrumentIn, instrumentOut, reason)
		return execution.Result{
			InstrumentIn:  instrumentIn,
			InstrumentOut: instrumentOut,
			AmountIn:      amount,
			Status:        execution.StatusFailed,
			Reason:        reason,
			ExecutedAt:    e.nowFn().UTC(),
		}, nil
	}

	decision := e.router.Route(instrumentIn, instrumentOut, amount)
	var res execution.Result
	switch decision.Path {
	case execution.PathStealth:
		sr := e.stealth.StealthTrade(ctx, instrumentIn, instrumentOut, amount, execution.StealthOptions{
			Privacy:    decision.Privacy,
			SplitOrder: decision.SplitOrder,
		})
		res = sr.Result
	default:
		opts := execution.SwapOptions{}
		if decision.SkipMEVCheck {
			skip := true
			opts.SkipMEVCheck = &skip
		}
		ir := e.instant.InstantSwap(ctx, instrumentIn, instrumentOut, amount, opts)
		res = ir.Result
	}
	if res.Succeeded() {
		e.countTrade()
		e.applyFill(instrumentIn, instrumentOut, res)
	}
	return res, nil
}

// checkGuards returns a rejection reason, or "" when the trade may proceed.
func (e *Engine) checkGuards(instrumentIn, instrumentOut string, amount float64) string {
	t := e.cfg.Trading
	if t.MaxDailyTrades > 0 {
		e.mu.Lock()
		day := e.nowFn().UTC().Format("2006-01-02")
		if day != e.tradesDay {
			e.tradesDay = day
			e.tradesToday = 0
		}
		count := e.tradesToday
		e.mu.Unlock()
		if count >= t.MaxDailyTrades {
			return fmt.Sprintf("daily trade limit reached (%d)", t.MaxDailyTrades)
		}
	}
	if t.MaxPositionNotionalUSD > 0 && instrumentIn == market.Normalize(t.Settlement) {
		current := 0.0
		if pos, ok := e.positions.Get(instrumentOut); ok {
			current = pos.ValueUSD()
		}
		if current+amount > t.MaxPositionNotionalUSD {
			return fmt.Sprintf("position notional cap exceeded: %.2f + %.2f > %.2f",
				current, amount, t.MaxPositionNotionalUSD)
		}
	}
	return ""
}

func (e *Engine) countTrade() {
	e.mu.Lock()
	day := e.nowFn().UTC().Format("2006-01-02")
	if day != e.tradesDay {
		e.tradesDay = day
		e.tradesToday = 0
	}
	e.tradesToday++
	e.mu.Unlock()
}

// applyFill folds a successful execution into the position book.
func (e *Engine) applyFill(instrumentIn, instrumentOut string, res execution.Result) {
	settlement := market.Normalize(e.cfg.Trading.Settlement)
	if instrumentIn != settlement {
		sellPrice := e.market.LatestPrice(instrumentIn)
		if sellPrice <= 0 && res.AmountIn > 0 {
			sellPrice = res.AmountOut / res.AmountIn * priceOrOne(e.market.LatestPrice(instrumentOut))
		}
		e.positions.ApplySell(instrumentIn, res.AmountIn, sellPrice)
	}
	if instrumentOut != settlement && res.AmountOut > 0 {
		buyPrice := res.EffectivePrice
		if instrumentIn != settlement {
			buyPrice = e.market.LatestPrice(instrumentOut)
		}
		e.positions.ApplyBuy(instrumentOut, res.AmountOut, buyPrice)
	}
}

func priceOrOne(p float64) float64 {
	if p <= 0 {
		return 1
	}
	return p
}

// Close stops schedulers, waits for in-flight dispatches and closes the bus.
func (e *Engine) Close() {
	e.dca.StopAll()
	e.wg.Wait()
	e.bus.Close()
}
