package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"ordex/internal/capability"
)

func TestProviderQuotesAndStablecoinPar(t *testing.T) {
	p := NewProvider(map[string]float64{"sol": 142})
	c := capability.NewClient(p)

	quote, err := c.LookupPrice(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, 142.0, quote.PriceUSD)

	quote, err = c.LookupPrice(context.Background(), "USDC")
	require.NoError(t, err)
	assert.Equal(t, 1.0, quote.PriceUSD)

	_, err = c.LookupPrice(context.Background(), "DOGE")
	assert.ErrorContains(t, err, "no quote")

	p.SetPrice("SOL", 150)
	quote, err = c.LookupPrice(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, 150.0, quote.PriceUSD)
}

func TestProviderSwapAppliesFee(t *testing.T) {
	p := NewProvider(map[string]float64{"SOL": 100})
	c := capability.NewClient(p)

	out, err := c.ExecuteSwap(context.Background(), capability.SwapRequest{
		InstrumentIn:  "USDC",
		InstrumentOut: "SOL",
		Amount:        1_000,
	})
	require.NoError(t, err)
	assert.InDelta(t, 9.99, out.AmountOut, 1e-9) // 10 SOL gross less 0.1%
	assert.InDelta(t, 1_000/9.99, out.EffectivePrice, 1e-9)
	assert.Equal(t, "sim:USDC-SOL", out.Route)
	assert.InDelta(t, 1.0, out.FeeUSD, 1e-9)

	_, err = c.ExecuteSwap(context.Background(), capability.SwapRequest{
		InstrumentIn:  "USDC",
		InstrumentOut: "NOPE",
		Amount:        100,
	})
	assert.ErrorContains(t, err, "no quote for pair")
}

func TestProviderMEVAnalysis(t *testing.T) {
	p := NewProvider(nil)
	c := capability.NewClient(p)

	got, err := c.AnalyzeMEV(context.Background(), "USDC", "SOL", 10_000)
	require.NoError(t, err)
	assert.Zero(t, got.RiskScore)
	assert.Equal(t, "proceed", got.Recommendation)

	p.SetMEVRisk(0.9)
	got, err = c.AnalyzeMEV(context.Background(), "USDC", "SOL", 10_000)
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.RiskScore)
	assert.Equal(t, "use_protection", got.Recommendation)
}

func TestProviderA2AInvoke(t *testing.T) {
	p := NewProvider(map[string]float64{"SOL": 100})

	raw, err := p.A2AInvoke(context.Background(), "agent-b", capability.CapPriceLookup,
		map[string]any{"instrument": "SOL"})
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(raw, "success").Bool())
	assert.Equal(t, "agent-b", gjson.GetBytes(raw, "target").String())
	assert.Equal(t, 100.0, gjson.GetBytes(raw, "price_usd").Float())

	raw, err = p.A2AInvoke(context.Background(), "agent-b", capability.CapPriceLookup,
		map[string]any{"instrument": "DOGE"})
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(raw, "success").Bool())
	assert.Contains(t, gjson.GetBytes(raw, "error").String(), "no quote")
}

func TestProviderUnknownCapability(t *testing.T) {
	p := NewProvider(nil)
	res, err := p.Invoke(context.Background(), "nope.nothing", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "unknown capability")
}
