package execution

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"ordex/internal/capability"
	"ordex/internal/events"
	"ordex/internal/logger"
	"ordex/internal/metrics"
	"ordex/internal/pkg/trading"
)

// StealthConfig tunes privacy escalation and order splitting.
type StealthConfig struct {
	ProtectedMinUSD   float64
	PrivateMinUSD     float64
	MaximumMinUSD     float64
	SplitThresholdUSD float64
	MaxChunks         int
	ChunkBaseDelay    time.Duration
	ChunkJitter       time.Duration
	RandomizeTiming   bool
}

// StealthOptions is what callers may request; the engine escalates privacy
// beyond the request when the notional demands it, never below.
type StealthOptions struct {
	Privacy    string
	SplitOrder bool
	MaxChunks  int
}

// StealthEngine executes large trades in privacy-escalated, optionally
// split, chunks.
type StealthEngine struct {
	cfg    StealthConfig
	client *capability.Client
	prices PriceSource
	bus    *events.Bus

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func NewStealthEngine(cfg StealthConfig, client *capability.Client, prices PriceSource, bus *events.Bus) *StealthEngine {
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 5
	}
	if cfg.ChunkBaseDelay <= 0 {
		cfg.ChunkBaseDelay = 2 * time.Second
	}
	return &StealthEngine{
		cfg:    cfg,
		client: client,
		prices: prices,
		bus:    bus,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
	}
}

// escalatedPrivacy maps notional value to the minimum acceptable tier.
func (e *StealthEngine) escalatedPrivacy(notionalUSD float64) string {
	switch {
	case e.cfg.MaximumMinUSD > 0 && notionalUSD >= e.cfg.MaximumMinUSD:
		return PrivacyMaximum
	case e.cfg.PrivateMinUSD > 0 && notionalUSD >= e.cfg.PrivateMinUSD:
		return PrivacyPrivate
	case e.cfg.ProtectedMinUSD > 0 && notionalUSD >= e.cfg.ProtectedMinUSD:
		return PrivacyProtected
	default:
		return PrivacyStandard
	}
}

// StealthTrade executes a trade at an escalated privacy tier, split into
// timed chunks when the notional crosses the split threshold. A failed chunk
// is recorded and the remaining chunks still run; the aggregate is failed
// only when nothing executed at all.
func (e *StealthEngine) StealthTrade(ctx context.Context, instrumentIn, instrumentOut string, amount float64, opts StealthOptions) StealthResult {
	start := time.Now()
	res := StealthResult{Result: Result{
		ID:            uuid.NewString(),
		InstrumentIn:  instrumentIn,
		InstrumentOut: instrumentOut,
		AmountIn:      amount,
		Strategy:      string(PathStealth),
		ExecutedAt:    start.UTC(),
	}}
	if amount <= 0 {
		res.Status = StatusFailed
		res.Reason = "amount must be positive"
		res.Latency = time.Since(start)
		return res
	}

	notional := trading.Notional(amount, e.prices.LatestPrice(instrumentIn))
	res.Privacy = HigherPrivacy(opts.Privacy, e.escalatedPrivacy(notional))

	chunkCount := 1
	if opts.SplitOrder && e.cfg.SplitThresholdUSD > 0 && notional >= e.cfg.SplitThresholdUSD {
		chunkCount = e.cfg.MaxChunks
		if opts.MaxChunks > 0 {
			chunkCount = opts.MaxChunks
		}
	}
	amounts := trading.SplitAmount(amount, chunkCount)
	logger.Infof("stealth: %s->%s amount=%.6f notional=%.2f privacy=%s chunks=%d",
		instrumentIn, instrumentOut, amount, notional, res.Privacy, len(amounts))

	var totalOut, totalSavings float64
	succeeded := 0
	for i, chunkAmount := range amounts {
		if i > 0 {
			e.sleep(ctx, e.chunkDelay())
		}
		chunk := ChunkResult{Index: i, AmountIn: chunkAmount, Privacy: res.Privacy}
		outcome, err := e.client.ExecuteSwap(ctx, capability.SwapRequest{
			InstrumentIn:  instrumentIn,
			InstrumentOut: instrumentOut,
			Amount:        chunkAmount,
			Privacy:       res.Privacy,
		})
		if err != nil {
			chunk.Err = err.Error()
			logger.Warnf("stealth: chunk %d/%d failed: %v", i+1, len(amounts), err)
		} else {
			chunk.AmountOut = outcome.AmountOut
			chunk.SavingsUSD = outcome.SavingsUSD
			totalOut += outcome.AmountOut
			totalSavings += outcome.SavingsUSD
			succeeded++
		}
		res.Chunks = append(res.Chunks, chunk)
	}

	res.AmountOut = totalOut
	res.TotalSavingsUSD = totalSavings
	if totalOut > 0 {
		// Input units paid per output unit, matching every other path and
		// the DCA spent/acquired average.
		res.EffectivePrice = amount / totalOut
	}
	// Chunk failures are recorded, not fatal: the aggregate stays completed
	// so partial fills remain auditable.
	res.Status = StatusCompleted
	if succeeded == 0 {
		res.Reason = "all chunks failed"
	}
	res.Latency = time.Since(start)

	metrics.SwapLatency.WithLabelValues(res.Strategy).Observe(float64(res.Latency.Milliseconds()))
	metrics.TradesExecuted.WithLabelValues(res.Strategy, string(res.Status)).Inc()
	if e.bus != nil {
		e.bus.Publish(events.KindStealthTradeCompleted, events.TradeEvent{
			TradeID:       res.ID,
			InstrumentIn:  instrumentIn,
			InstrumentOut: instrumentOut,
			AmountIn:      amount,
			AmountOut:     totalOut,
			Status:        string(res.Status),
			Strategy:      res.Strategy,
			Chunks:        len(res.Chunks),
		})
	}
	return res
}

func (e *StealthEngine) chunkDelay() time.Duration {
	if !e.cfg.RandomizeTiming {
		return e.cfg.ChunkBaseDelay
	}
	jitter := time.Duration(0)
	if e.cfg.ChunkJitter > 0 {
		jitter = time.Duration(rand.Int63n(int64(e.cfg.ChunkJitter)))
	}
	return e.cfg.ChunkBaseDelay + jitter
}
