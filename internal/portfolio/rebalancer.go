package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"ordex/internal/capability"
	"ordex/internal/events"
	"ordex/internal/execution"
	"ordex/internal/logger"
)

const allocationSumEpsilon = 0.01

// TradeExecutor is the routed execution entry point the rebalancer drives.
type TradeExecutor interface {
	Execute(ctx context.Context, instrumentIn, instrumentOut string, amount float64) (execution.Result, error)
}

// PlannedTrade is one leg of a rebalance.
type PlannedTrade struct {
	Side       string  `json:"side"` // "sell" or "buy"
	Instrument string  `json:"instrument"`
	AmountUSD  float64 `json:"amount_usd"`
	Amount     float64 `json:"amount"`
	Executed   bool    `json:"executed"`
	Error      string  `json:"error,omitempty"`
}

// RebalanceReport is the aggregate outcome; individual leg failures are
// recorded without aborting the remaining legs. ResultingAllocations is
// recomputed from the book after the legs execute, so callers can see how
// close the executed plan got to the targets; it is nil on a dry run.
type RebalanceReport struct {
	Trades               []PlannedTrade     `json:"trades"`
	TotalValueUSD        float64            `json:"total_value_usd"`
	CurrentAllocations   map[string]float64 `json:"current_allocations"`
	ResultingAllocations map[string]float64 `json:"resulting_allocations,omitempty"`
	DryRun               bool               `json:"dry_run"`
}

// Rebalancer computes and executes the trade set that moves holdings toward
// target allocation percentages.
type Rebalancer struct {
	book       *Book
	exec       TradeExecutor
	client     *capability.Client
	bus        *events.Bus
	settlement string
}

// NewRebalancer builds a rebalancer settling through the given instrument
// (typically a USD stable).
func NewRebalancer(book *Book, exec TradeExecutor, client *capability.Client, bus *events.Bus, settlement string) *Rebalancer {
	if settlement == "" {
		settlement = "USDC"
	}
	return &Rebalancer{book: book, exec: exec, client: client, bus: bus, settlement: settlement}
}

// Rebalance moves current holdings toward targets. Sells run before buys so
// settlement liquidity exists for the buy legs. In dry-run mode the same
// trade list is returned without touching the executor.
func (r *Rebalancer) Rebalance(ctx context.Context, targets map[string]float64, tolerancePct float64, dryRun bool) (RebalanceReport, error) {
	if len(targets) == 0 {
		return RebalanceReport{}, fmt.Errorf("rebalance: target allocations required")
	}
	var sum float64
	for instrument, pct := range targets {
		if pct < 0 {
			return RebalanceReport{}, fmt.Errorf("rebalance: negative allocation for %s", instrument)
		}
		sum += pct
	}
	if math.Abs(sum-100) > allocationSumEpsilon {
		return RebalanceReport{}, fmt.Errorf("rebalance: allocations sum to %.4f%%, want 100%%", sum)
	}

	r.refreshPrices(ctx, targets)

	total := r.book.TotalValueUSD()
	if total <= 0 {
		return RebalanceReport{}, fmt.Errorf("rebalance: portfolio has no value")
	}

	current := make(map[string]float64)
	values := make(map[string]float64)
	for _, pos := range r.book.List() {
		values[pos.Instrument] = pos.ValueUSD()
		current[pos.Instrument] = pos.ValueUSD() / total * 100
	}

	var sells, buys []PlannedTrade
	for _, instrument := range sortedKeys(targets) {
		targetPct := targets[instrument]
		drift := targetPct - current[instrument]
		if math.Abs(drift) <= tolerancePct {
			continue
		}
		deltaUSD := math.Abs(drift) / 100 * total
		if drift < 0 {
			pos, ok := r.book.Get(instrument)
			if !ok || pos.LastPrice <= 0 {
				continue
			}
			sells = append(sells, PlannedTrade{
				Side:       "sell",
				Instrument: instrument,
				AmountUSD:  deltaUSD,
				Amount:     deltaUSD / pos.LastPrice,
			})
		} else if instrument != r.settlement {
			buys = append(buys, PlannedTrade{
				Side:       "buy",
				Instrument: instrument,
				AmountUSD:  deltaUSD,
				Amount:     deltaUSD, // spent in settlement units
			})
		}
	}
	// Instruments held but absent from the target map are fully overweight.
	for instrument, pct := range current {
		if _, targeted := targets[instrument]; targeted || instrument == r.settlement {
			continue
		}
		if pct <= tolerancePct {
			continue
		}
		pos, _ := r.book.Get(instrument)
		sells = append(sells, PlannedTrade{
			Side:       "sell",
			Instrument: instrument,
			AmountUSD:  values[instrument],
			Amount:     pos.Amount,
		})
	}

	report := RebalanceReport{
		TotalValueUSD:      total,
		CurrentAllocations: current,
		DryRun:             dryRun,
	}
	trades := append(sells, buys...)
	if dryRun {
		report.Trades = trades
		return report, nil
	}

	executed := 0
	for i := range trades {
		t := &trades[i]
		var in, out string
		if t.Side == "sell" {
			in, out = t.Instrument, r.settlement
		} else {
			in, out = r.settlement, t.Instrument
		}
		res, err := r.exec.Execute(ctx, in, out, t.Amount)
		switch {
		case err != nil:
			t.Error = err.Error()
			logger.Warnf("rebalance: %s %s failed: %v", t.Side, t.Instrument, err)
		case !res.Succeeded():
			t.Error = res.Reason
			logger.Warnf("rebalance: %s %s rejected: %s", t.Side, t.Instrument, res.Reason)
		default:
			t.Executed = true
			executed++
		}
	}
	report.Trades = trades
	if after := r.book.TotalValueUSD(); after > 0 {
		resulting := make(map[string]float64)
		for _, pos := range r.book.List() {
			resulting[pos.Instrument] = pos.ValueUSD() / after * 100
		}
		report.ResultingAllocations = resulting
	}

	if r.bus != nil {
		r.bus.Publish(events.KindRebalanceCompleted, events.RebalanceEvent{
			TradesPlanned:  len(trades),
			TradesExecuted: executed,
			TotalValueUSD:  total,
			DryRun:         dryRun,
		})
	}
	return report, nil
}

// refreshPrices concurrently re-quotes every instrument involved so drift is
// computed from fresh marks rather than stale settlement prices.
func (r *Rebalancer) refreshPrices(ctx context.Context, targets map[string]float64) {
	if r.client == nil {
		return
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, pos := range r.book.List() {
		if _, ok := targets[pos.Instrument]; !ok && pos.Instrument != r.settlement {
			continue
		}
		instrument := pos.Instrument
		group.Go(func() error {
			quote, err := r.client.LookupPrice(gctx, instrument)
			if err != nil {
				logger.Debugf("rebalance: price refresh %s failed: %v", instrument, err)
				return nil
			}
			r.book.MarkPrice(instrument, quote.PriceUSD)
			return nil
		})
	}
	_ = group.Wait()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
