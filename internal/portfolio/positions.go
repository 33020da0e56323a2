// Package portfolio tracks holdings and rebalances them toward target
// allocations.
package portfolio

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"ordex/internal/market"
)

// Position is one holding. Amount never goes negative: a fully closed
// position is removed from the book.
type Position struct {
	Instrument    string  `json:"instrument"`
	Amount        float64 `json:"amount"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	LastPrice     float64 `json:"last_price"`
}

// UnrealizedPnL is derived from the last known price.
func (p Position) UnrealizedPnL() float64 {
	return (p.LastPrice - p.AvgEntryPrice) * p.Amount
}

// ValueUSD is the position's worth at the last known price.
func (p Position) ValueUSD() float64 {
	return p.LastPrice * p.Amount
}

// Book is an engine-owned position table. Only successful trade settlement
// mutates it.
type Book struct {
	mu        sync.Mutex
	positions map[string]*Position
}

func NewBook() *Book {
	return &Book{positions: make(map[string]*Position)}
}

// ApplyBuy records an acquisition, blending the average entry price.
func (b *Book) ApplyBuy(instrument string, amount, price float64) {
	if amount <= 0 || price <= 0 {
		return
	}
	instrument = market.Normalize(instrument)
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[instrument]
	if !ok {
		b.positions[instrument] = &Position{
			Instrument:    instrument,
			Amount:        amount,
			AvgEntryPrice: price,
			LastPrice:     price,
		}
		return
	}
	oldCost := decimal.NewFromFloat(pos.Amount).Mul(decimal.NewFromFloat(pos.AvgEntryPrice))
	addCost := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(price))
	newAmount := decimal.NewFromFloat(pos.Amount).Add(decimal.NewFromFloat(amount))
	pos.AvgEntryPrice, _ = oldCost.Add(addCost).Div(newAmount).Float64()
	pos.Amount, _ = newAmount.Float64()
	pos.LastPrice = price
}

// ApplySell reduces a position, deleting it when fully closed. Selling more
// than held clamps to the held amount.
func (b *Book) ApplySell(instrument string, amount, price float64) {
	if amount <= 0 {
		return
	}
	instrument = market.Normalize(instrument)
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[instrument]
	if !ok {
		return
	}
	if amount >= pos.Amount {
		delete(b.positions, instrument)
		return
	}
	remaining := decimal.NewFromFloat(pos.Amount).Sub(decimal.NewFromFloat(amount))
	pos.Amount, _ = remaining.Float64()
	if price > 0 {
		pos.LastPrice = price
	}
}

// MarkPrice refreshes the last known price without touching the amount.
func (b *Book) MarkPrice(instrument string, price float64) {
	if price <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos, ok := b.positions[market.Normalize(instrument)]; ok {
		pos.LastPrice = price
	}
}

func (b *Book) Get(instrument string) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[market.Normalize(instrument)]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// List returns positions sorted by instrument for stable iteration.
func (b *Book) List() []Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// TotalValueUSD sums position values at the last known prices.
func (b *Book) TotalValueUSD() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := decimal.Zero
	for _, pos := range b.positions {
		total = total.Add(decimal.NewFromFloat(pos.ValueUSD()))
	}
	v, _ := total.Float64()
	return v
}
