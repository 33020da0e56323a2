package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordex/internal/capability/sim"
	"ordex/internal/config"
	"ordex/internal/events"
	"ordex/internal/execution"
	"ordex/internal/orders"
)

func testConfig() *config.Config {
	return &config.Config{
		Market:  config.MarketConfig{MaxHistory: 100},
		Routing: config.RoutingConfig{SmallMaxUSD: 1_000, LargeMinUSD: 10_000},
		Instant: config.InstantConfig{
			PriceCacheTTLSeconds: 5,
			RouteCacheTTLSeconds: 30,
			SkipMEVThresholdUSD:  1_000,
			DefaultSlippagePct:   0.5,
			MEVRiskCutoff:        0.7,
			LatencySamples:       100,
		},
		Stealth: config.StealthConfig{
			ProtectedMinUSD:   10_000,
			PrivateMinUSD:     50_000,
			MaximumMinUSD:     100_000,
			SplitThresholdUSD: 10_000,
			MaxChunks:         5,
		},
		FaultTolerance: config.FaultToleranceConfig{
			MaxRetries:              3,
			RetryDelayMs:            1,
			CallTimeoutSeconds:      1,
			CircuitBreakerThreshold: 5,
			CircuitResetSeconds:     60,
			FallbackTargets:         []string{"backup"},
		},
		Trading: config.TradingConfig{Settlement: "USDC", DefaultTolerancePct: 1},
	}
}

func newTestEngine(t *testing.T, cfg *config.Config) (*Engine, *sim.Provider) {
	t.Helper()
	provider := sim.NewProvider(map[string]float64{"SOL": 100, "ETH": 2_000})
	eng := New(cfg, provider, provider)
	t.Cleanup(eng.Close)
	return eng, provider
}

func TestEngineExecuteUpdatesPositions(t *testing.T) {
	eng, _ := newTestEngine(t, testConfig())

	res, err := eng.Execute(context.Background(), "USDC", "SOL", 500)
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Equal(t, string(execution.PathInstant), res.Strategy)
	assert.InDelta(t, 4.995, res.AmountOut, 1e-9) // 500/100 minus 0.1% fee

	pos, ok := eng.Positions().Get("SOL")
	require.True(t, ok)
	assert.InDelta(t, 4.995, pos.Amount, 1e-9)
}

func TestEngineStopLossFiresOnceEndToEnd(t *testing.T) {
	eng, provider := newTestEngine(t, testConfig())
	triggered := eng.Bus().Subscribe(4, events.KindOrderTriggered)

	_, err := eng.Execute(context.Background(), "USDC", "SOL", 500)
	require.NoError(t, err)

	order, err := eng.SetStopLoss("SOL", 90, 4.995, nil)
	require.NoError(t, err)
	assert.Equal(t, "USDC", order.Settlement)

	require.NoError(t, eng.RecordTick("SOL", 95, time.Now()))
	assert.Empty(t, triggered)

	provider.SetPrice("SOL", 85)
	require.NoError(t, eng.RecordTick("SOL", 85, time.Now()))

	select {
	case evt := <-triggered:
		payload := evt.Payload.(events.OrderEvent)
		assert.Equal(t, order.ID, payload.OrderID)
		assert.Equal(t, 85.0, payload.MarketPrice)
	case <-time.After(time.Second):
		t.Fatal("stop-loss never fired")
	}

	// Still below trigger: the order is terminal and must not fire again.
	require.NoError(t, eng.RecordTick("SOL", 80, time.Now()))
	assert.Empty(t, triggered)

	// The dispatched sell drains the position.
	assert.Eventually(t, func() bool {
		pos, ok := eng.Positions().Get("SOL")
		return !ok || pos.Amount < 1e-9
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngineLimitBuyFillsAndRecords(t *testing.T) {
	eng, provider := newTestEngine(t, testConfig())
	filled := eng.Bus().Subscribe(4, events.KindLimitOrderFilled)

	order, err := eng.LimitBuy("SOL", 2, 90, nil)
	require.NoError(t, err)

	require.NoError(t, eng.RecordTick("SOL", 95, time.Now()))
	assert.Empty(t, filled)

	provider.SetPrice("SOL", 88)
	require.NoError(t, eng.RecordTick("SOL", 88, time.Now()))

	select {
	case evt := <-filled:
		assert.Equal(t, order.ID, evt.Payload.(events.LimitOrderEvent).OrderID)
	case <-time.After(time.Second):
		t.Fatal("limit buy never filled")
	}

	var got orders.LimitOrder
	for _, o := range eng.LimitOrders() {
		if o.ID == order.ID {
			got = o
		}
	}
	assert.Equal(t, orders.LimitFilled, got.Status)
	assert.InDelta(t, 1.998, got.FilledAmount, 1e-9) // 2*88 spent, 0.1% fee
	assert.Greater(t, got.FilledPrice, 0.0)
}

func TestEngineDailyTradeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Trading.MaxDailyTrades = 1
	eng, _ := newTestEngine(t, cfg)

	res, err := eng.Execute(context.Background(), "USDC", "SOL", 100)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	res, err = eng.Execute(context.Background(), "USDC", "SOL", 100)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "daily trade limit")
}

func TestEnginePositionNotionalCap(t *testing.T) {
	cfg := testConfig()
	cfg.Trading.MaxPositionNotionalUSD = 1_000
	eng, _ := newTestEngine(t, cfg)
	require.NoError(t, eng.RecordTick("SOL", 100, time.Now()))

	res, err := eng.Execute(context.Background(), "USDC", "SOL", 600)
	require.NoError(t, err)
	require.True(t, res.Succeeded())

	res, err = eng.Execute(context.Background(), "USDC", "SOL", 600)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "position notional cap")

	// Sells stay unaffected by the cap.
	res, err = eng.Execute(context.Background(), "SOL", "USDC", 1)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
}

func TestEngineTrailingStopNeedsMarketPrice(t *testing.T) {
	eng, _ := newTestEngine(t, testConfig())

	_, err := eng.SetTrailingStop("SOL", 10, 1, nil)
	assert.ErrorIs(t, err, orders.ErrNoMarketPrice)

	require.NoError(t, eng.RecordTick("SOL", 100, time.Now()))
	order, err := eng.SetTrailingStop("SOL", 10, 1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, order.TriggerPrice, 1e-9)
}

func TestEngineRemoteNotConfigured(t *testing.T) {
	provider := sim.NewProvider(nil)
	eng := New(testConfig(), provider, nil)
	defer eng.Close()

	_, err := eng.ExecuteRemote(context.Background(), execution.RemoteOperation{}, "primary")
	assert.ErrorContains(t, err, "remote execution is not configured")
}

func TestEngineRoutingHotReload(t *testing.T) {
	eng, _ := newTestEngine(t, testConfig())
	require.NoError(t, eng.RecordTick("SOL", 100, time.Now()))

	// 5 SOL = 500 USD is small under the initial thresholds.
	res, err := eng.Execute(context.Background(), "USDC", "SOL", 500)
	require.NoError(t, err)
	assert.Equal(t, string(execution.PathInstant), res.Strategy)

	eng.UpdateRouting(config.RoutingConfig{SmallMaxUSD: 10, LargeMinUSD: 100})
	res, err = eng.Execute(context.Background(), "USDC", "SOL", 500)
	require.NoError(t, err)
	assert.Equal(t, string(execution.PathStealth), res.Strategy)
}
