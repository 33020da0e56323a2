package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordex/internal/market"
)

func tick(instrument string, price float64) market.Tick {
	return market.Tick{Instrument: instrument, Price: price, At: time.Now().UTC()}
}

func TestStopLossFiresOnceAndOnlyOnce(t *testing.T) {
	b := NewConditionalBook()
	o, err := b.SetStopLoss("SOL", "USDC", 140, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, o.Status)

	var firedTotal int
	for _, price := range []float64{150, 145, 142, 138, 130, 120} {
		fired, expired := b.Evaluate(tick("SOL", price))
		assert.Empty(t, expired)
		firedTotal += len(fired)
		if len(fired) > 0 {
			assert.Equal(t, o.ID, fired[0].ID)
			assert.Equal(t, StatusTriggered, fired[0].Status)
			assert.Equal(t, 138.0, price, "should fire on the first crossing tick")
		}
	}
	assert.Equal(t, 1, firedTotal)

	got, ok := b.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, StatusTriggered, got.Status)
	require.NotNil(t, got.TriggeredAt)
}

func TestStopLossExactTriggerFires(t *testing.T) {
	b := NewConditionalBook()
	o, err := b.SetStopLoss("ETH", "USDC", 2000, 1, nil)
	require.NoError(t, err)

	fired, _ := b.Evaluate(tick("ETH", 2000))
	require.Len(t, fired, 1)
	assert.Equal(t, o.ID, fired[0].ID)
}

func TestTakeProfitFiresOnRise(t *testing.T) {
	b := NewConditionalBook()
	_, err := b.SetTakeProfit("SOL", "USDC", 200, 5, nil)
	require.NoError(t, err)

	fired, _ := b.Evaluate(tick("SOL", 199.99))
	assert.Empty(t, fired)
	fired, _ = b.Evaluate(tick("SOL", 201))
	require.Len(t, fired, 1)
	assert.Equal(t, KindTakeProfit, fired[0].Kind)
}

func TestTrailingStopRatchetsUpNeverDown(t *testing.T) {
	b := NewConditionalBook()
	o, err := b.SetTrailingStop("SOL", "USDC", 10, 3, 100, nil)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, o.TriggerPrice, 1e-9)

	// New high lifts the trigger.
	fired, _ := b.Evaluate(tick("SOL", 120))
	assert.Empty(t, fired)
	got, _ := b.Get(o.ID)
	assert.InDelta(t, 108.0, got.TriggerPrice, 1e-9)
	assert.Equal(t, 120.0, got.HighestSeen)

	// A pullback that stays above the trigger changes nothing.
	fired, _ = b.Evaluate(tick("SOL", 110))
	assert.Empty(t, fired)
	got, _ = b.Get(o.ID)
	assert.InDelta(t, 108.0, got.TriggerPrice, 1e-9)
	assert.Equal(t, 120.0, got.HighestSeen)

	// Dropping to the trigger fires.
	fired, _ = b.Evaluate(tick("SOL", 107))
	require.Len(t, fired, 1)
	assert.Equal(t, StatusTriggered, fired[0].Status)
}

func TestTrailingStopValidation(t *testing.T) {
	b := NewConditionalBook()
	_, err := b.SetTrailingStop("SOL", "USDC", 0, 3, 100, nil)
	assert.ErrorIs(t, err, ErrInvalidPercent)
	_, err = b.SetTrailingStop("SOL", "USDC", 100, 3, 100, nil)
	assert.ErrorIs(t, err, ErrInvalidPercent)
	_, err = b.SetTrailingStop("SOL", "USDC", 10, 3, 0, nil)
	assert.ErrorIs(t, err, ErrNoMarketPrice)
}

func TestExpiryWinsOverTrigger(t *testing.T) {
	b := NewConditionalBook()
	past := time.Now().UTC().Add(-time.Minute)
	o, err := b.SetStopLoss("SOL", "USDC", 140, 10, &past)
	require.NoError(t, err)

	// Price would also fire, but the order is already expired.
	fired, expired := b.Evaluate(tick("SOL", 100))
	assert.Empty(t, fired)
	require.Len(t, expired, 1)
	assert.Equal(t, o.ID, expired[0].ID)
	assert.Equal(t, StatusExpired, expired[0].Status)
}

func TestCancelOnlyActiveOrders(t *testing.T) {
	b := NewConditionalBook()
	o, err := b.SetStopLoss("SOL", "USDC", 140, 10, nil)
	require.NoError(t, err)

	require.NoError(t, b.Cancel(o.ID))
	got, _ := b.Get(o.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	// A cancelled order cannot be cancelled again, and never fires.
	assert.ErrorIs(t, b.Cancel(o.ID), ErrNotActive)
	fired, _ := b.Evaluate(tick("SOL", 100))
	assert.Empty(t, fired)

	assert.ErrorIs(t, b.Cancel("missing"), ErrNotFound)
}

func TestEvaluateIgnoresOtherInstruments(t *testing.T) {
	b := NewConditionalBook()
	_, err := b.SetStopLoss("SOL", "USDC", 140, 10, nil)
	require.NoError(t, err)

	fired, expired := b.Evaluate(tick("ETH", 100))
	assert.Empty(t, fired)
	assert.Empty(t, expired)
}

func TestOrderValidation(t *testing.T) {
	b := NewConditionalBook()
	_, err := b.SetStopLoss("SOL", "USDC", 140, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = b.SetStopLoss("SOL", "USDC", -1, 10, nil)
	assert.ErrorIs(t, err, ErrInvalidTrigger)
	_, err = b.SetTakeProfit("", "USDC", 140, 10, nil)
	assert.Error(t, err)
}
