package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordex/internal/capability"
	"ordex/internal/capability/sim"
	"ordex/internal/pkg/convert"
)

func newInstantFixture(t *testing.T, prices map[string]float64) (*InstantEngine, *sim.Provider) {
	t.Helper()
	provider := sim.NewProvider(prices)
	client := capability.NewClient(provider)
	eng := NewInstantEngine(InstantConfig{
		SkipMEVThresholdUSD: 100,
		DefaultSlippagePct:  0.5,
	}, client, nil)
	return eng, provider
}

func TestInstantSwapExecutes(t *testing.T) {
	eng, _ := newInstantFixture(t, map[string]float64{"SOL": 150})

	res := eng.InstantSwap(context.Background(), "SOL", "USDC", 2, SwapOptions{})
	require.Equal(t, StatusExecuted, res.Status)
	assert.True(t, res.Succeeded())
	assert.InDelta(t, 299.7, res.AmountOut, 1e-6) // 300 minus the 0.1% sim fee
	assert.Positive(t, res.EffectivePrice)
	assert.False(t, res.PriceCacheHit)
	assert.True(t, res.MEVChecked, "300 USD is above the skip threshold")

	// Second swap on the same pair hits the warm price cache.
	res = eng.InstantSwap(context.Background(), "SOL", "USDC", 2, SwapOptions{})
	assert.True(t, res.PriceCacheHit)
}

// swapRouteRecorder captures the route input of every swap.execute call.
type swapRouteRecorder struct {
	*sim.Provider
	mu     sync.Mutex
	routes []string
}

func (r *swapRouteRecorder) Invoke(ctx context.Context, capabilityID string, inputs map[string]any) (capability.Result, error) {
	if capabilityID == capability.CapSwapExecute {
		r.mu.Lock()
		r.routes = append(r.routes, convert.ToString(inputs["route"]))
		r.mu.Unlock()
	}
	return r.Provider.Invoke(ctx, capabilityID, inputs)
}

func TestInstantSwapPinsCachedRoute(t *testing.T) {
	recorder := &swapRouteRecorder{Provider: sim.NewProvider(map[string]float64{"SOL": 150})}
	eng := NewInstantEngine(InstantConfig{
		SkipMEVThresholdUSD: 1_000,
		DefaultSlippagePct:  0.5,
	}, capability.NewClient(recorder), nil)

	// First swap discovers the route; nothing is pinned yet.
	res := eng.InstantSwap(context.Background(), "SOL", "USDC", 2, SwapOptions{})
	require.True(t, res.Succeeded())
	assert.False(t, res.RouteCacheHit)

	// Second swap on the same pair pins the discovered route onto the request.
	res = eng.InstantSwap(context.Background(), "SOL", "USDC", 2, SwapOptions{})
	require.True(t, res.Succeeded())
	assert.True(t, res.RouteCacheHit)

	// The reverse pair is a distinct cache key and discovers its own route.
	res = eng.InstantSwap(context.Background(), "USDC", "SOL", 100, SwapOptions{})
	require.True(t, res.Succeeded())
	assert.False(t, res.RouteCacheHit)

	require.Len(t, recorder.routes, 3)
	assert.Empty(t, recorder.routes[0])
	assert.Equal(t, "sim:SOL-USDC", recorder.routes[1])
	assert.Empty(t, recorder.routes[2])
}

func TestInstantSwapSkipMEVOption(t *testing.T) {
	eng, _ := newInstantFixture(t, map[string]float64{"SOL": 150})

	skip := true
	res := eng.InstantSwap(context.Background(), "SOL", "USDC", 2, SwapOptions{SkipMEVCheck: &skip})
	require.True(t, res.Succeeded())
	assert.False(t, res.MEVChecked)
}

func TestInstantSwapHighMEVRiskStillExecutes(t *testing.T) {
	eng, provider := newInstantFixture(t, map[string]float64{"SOL": 150})
	provider.SetMEVRisk(0.9)

	// High risk escalates privacy, it does not block the trade.
	res := eng.InstantSwap(context.Background(), "SOL", "USDC", 2, SwapOptions{})
	require.True(t, res.Succeeded())
	assert.True(t, res.MEVChecked)
}

func TestInstantSwapFailsAsResultNotError(t *testing.T) {
	eng, _ := newInstantFixture(t, map[string]float64{"SOL": 150})

	res := eng.InstantSwap(context.Background(), "UNKNOWN", "USDC", 2, SwapOptions{})
	assert.Equal(t, StatusFailed, res.Status)
	assert.NotEmpty(t, res.Reason)

	res = eng.InstantSwap(context.Background(), "SOL", "USDC", 0, SwapOptions{})
	assert.Equal(t, StatusFailed, res.Status)
}

func TestInstantLatencyStats(t *testing.T) {
	eng, _ := newInstantFixture(t, map[string]float64{"SOL": 150})

	for i := 0; i < 5; i++ {
		eng.InstantSwap(context.Background(), "SOL", "USDC", 1, SwapOptions{})
	}
	stats := eng.LatencyStats()
	assert.Equal(t, 5, stats.Count)
	assert.GreaterOrEqual(t, stats.Max, stats.Min)
	assert.GreaterOrEqual(t, stats.P95, stats.Min)
}

func TestRaceSwapReturnsFirstFinisher(t *testing.T) {
	eng, _ := newInstantFixture(t, map[string]float64{"SOL": 150})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res := eng.RaceSwap(ctx, "SOL", "USDC", 2)

	require.True(t, res.Succeeded())
	assert.Equal(t, "race", res.Strategy)
	assert.Contains(t, []string{"instant", "mev_protected"}, res.WinningPath)
	assert.InDelta(t, 299.7, res.AmountOut, 1e-6)
}
