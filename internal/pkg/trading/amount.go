// Package trading provides trading calculation utilities.
package trading

import "github.com/shopspring/decimal"

// SplitAmount divides amount into n equal chunks using decimal math so the
// chunk sum reproduces the original amount exactly. Any rounding remainder
// lands on the last chunk.
func SplitAmount(amount float64, n int) []float64 {
	if amount <= 0 || n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{amount}
	}
	total := decimal.NewFromFloat(amount)
	per := total.Div(decimal.NewFromInt(int64(n))).Round(12)
	out := make([]float64, n)
	running := decimal.Zero
	for i := 0; i < n-1; i++ {
		out[i], _ = per.Float64()
		running = running.Add(per)
	}
	out[n-1], _ = total.Sub(running).Float64()
	return out
}

// Notional returns amount*price in quote units.
func Notional(amount, price float64) float64 {
	v, _ := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(price)).Float64()
	return v
}

// AveragePrice returns spent/acquired, or 0 when nothing was acquired.
func AveragePrice(spent, acquired decimal.Decimal) decimal.Decimal {
	if acquired.IsZero() {
		return decimal.Zero
	}
	return spent.Div(acquired)
}
