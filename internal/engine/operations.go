package engine

import (
	"context"
	"fmt"
	"time"

	"ordex/internal/dca"
	"ordex/internal/execution"
	"ordex/internal/market"
	"ordex/internal/orders"
	"ordex/internal/portfolio"
)

// SetStopLoss places a stop-loss selling amount of instrument into the
// configured settlement asset when price drops to trigger.
func (e *Engine) SetStopLoss(instrument string, trigger, amount float64, expiresAt *time.Time) (orders.ConditionalOrder, error) {
	return e.cond.SetStopLoss(instrument, e.cfg.Trading.Settlement, trigger, amount, expiresAt)
}

// SetTakeProfit places a take-profit that sells when price rises to trigger.
func (e *Engine) SetTakeProfit(instrument string, trigger, amount float64, expiresAt *time.Time) (orders.ConditionalOrder, error) {
	return e.cond.SetTakeProfit(instrument, e.cfg.Trading.Settlement, trigger, amount, expiresAt)
}

// SetTrailingStop anchors a trailing stop at the current market price. It
// fails when no tick for the instrument has been recorded yet.
func (e *Engine) SetTrailingStop(instrument string, trailingPct, amount float64, expiresAt *time.Time) (orders.ConditionalOrder, error) {
	price := e.market.LatestPrice(instrument)
	if price <= 0 {
		return orders.ConditionalOrder{}, fmt.Errorf("trailing stop %s: %w", market.Normalize(instrument), orders.ErrNoMarketPrice)
	}
	return e.cond.SetTrailingStop(instrument, e.cfg.Trading.Settlement, trailingPct, amount, price, expiresAt)
}

// CancelOrder cancels a conditional order.
func (e *Engine) CancelOrder(id string) error { return e.cond.Cancel(id) }

// ConditionalOrders lists every conditional order, terminal ones included.
func (e *Engine) ConditionalOrders() []orders.ConditionalOrder { return e.cond.List() }

// LimitBuy rests a buy of amount units of instrument at limitPrice or
// better, paid for in the settlement asset.
func (e *Engine) LimitBuy(instrument string, amount, limitPrice float64, expiresAt *time.Time) (orders.LimitOrder, error) {
	return e.limits.LimitBuy(instrument, e.cfg.Trading.Settlement, amount, limitPrice, expiresAt)
}

// LimitSell rests a sell of amount units of instrument at limitPrice or
// better.
func (e *Engine) LimitSell(instrument string, amount, limitPrice float64, expiresAt *time.Time) (orders.LimitOrder, error) {
	return e.limits.LimitSell(instrument, e.cfg.Trading.Settlement, amount, limitPrice, expiresAt)
}

// CancelLimitOrder cancels a resting limit order.
func (e *Engine) CancelLimitOrder(id string) error { return e.limits.Cancel(id) }

// LimitOrders lists every limit order.
func (e *Engine) LimitOrders() []orders.LimitOrder { return e.limits.List() }

// StartDCA begins a recurring purchase of buyInstrument funded by the
// settlement asset. The first interval executes immediately.
func (e *Engine) StartDCA(buyInstrument string, amountPerInterval float64, interval time.Duration, totalIntervals int) (dca.Schedule, error) {
	return e.dca.Start(buyInstrument, e.cfg.Trading.Settlement, amountPerInterval, interval, totalIntervals)
}

func (e *Engine) PauseDCA(id string) error  { return e.dca.Pause(id) }
func (e *Engine) ResumeDCA(id string) error { return e.dca.Resume(id) }
func (e *Engine) StopDCA(id string) error   { return e.dca.Stop(id) }

// DCASchedules lists every schedule with its accumulated totals.
func (e *Engine) DCASchedules() []dca.Schedule { return e.dca.List() }

// Rebalance drives the portfolio toward the target allocation. With dryRun
// the planned trades are returned without executing anything.
func (e *Engine) Rebalance(ctx context.Context, targets map[string]float64, tolerancePct float64, dryRun bool) (portfolio.RebalanceReport, error) {
	if tolerancePct <= 0 {
		tolerancePct = e.cfg.Trading.DefaultTolerancePct
	}
	return e.rebalancer.Rebalance(ctx, targets, tolerancePct, dryRun)
}

// ExecuteRemote runs a capability on another agent with retries, fallbacks
// and circuit breaking.
func (e *Engine) ExecuteRemote(ctx context.Context, op execution.RemoteOperation, primary string, fallbacks ...string) (execution.RemoteResult, error) {
	if e.remote == nil {
		return execution.RemoteResult{}, fmt.Errorf("engine: remote execution is not configured")
	}
	return e.remote.ExecuteWithFaultTolerance(ctx, op, primary, fallbacks...), nil
}

// RaceSwap runs the same trade down the instant and MEV-protected paths
// concurrently and returns the first finisher.
func (e *Engine) RaceSwap(ctx context.Context, instrumentIn, instrumentOut string, amount float64) execution.RaceResult {
	res := e.instant.RaceSwap(ctx, instrumentIn, instrumentOut, amount)
	if res.Succeeded() {
		e.countTrade()
		e.applyFill(market.Normalize(instrumentIn), market.Normalize(instrumentOut), res.Result)
	}
	return res
}

// LatencyStats reports the instant path's rolling latency statistics.
func (e *Engine) LatencyStats() execution.LatencyStats {
	return e.instant.LatencyStats()
}
