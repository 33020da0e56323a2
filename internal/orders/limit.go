package orders

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ordex/internal/market"
)

// LimitBook holds resting limit orders. Same retention and one-way status
// rules as the conditional book.
type LimitBook struct {
	mu     sync.Mutex
	orders map[string]*LimitOrder
	seq    []string
}

func NewLimitBook() *LimitBook {
	return &LimitBook{orders: make(map[string]*LimitOrder)}
}

func (b *LimitBook) place(side Side, instrument, settlement string, amount, limitPrice float64, expiresAt *time.Time) (LimitOrder, error) {
	instrument = market.Normalize(instrument)
	settlement = market.Normalize(settlement)
	if instrument == "" || settlement == "" {
		return LimitOrder{}, fmt.Errorf("limit %s: instrument and settlement required", side)
	}
	if amount <= 0 {
		return LimitOrder{}, fmt.Errorf("limit %s %s: %w", side, instrument, ErrInvalidAmount)
	}
	if limitPrice <= 0 {
		return LimitOrder{}, fmt.Errorf("limit %s %s: %w", side, instrument, ErrInvalidTrigger)
	}
	o := &LimitOrder{
		ID:         uuid.NewString(),
		Side:       side,
		Instrument: instrument,
		Settlement: settlement,
		Amount:     amount,
		LimitPrice: limitPrice,
		Status:     LimitOpen,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[o.ID] = o
	b.seq = append(b.seq, o.ID)
	return *o, nil
}

// LimitBuy rests a buy that fills when price drops to the limit or below.
func (b *LimitBook) LimitBuy(instrument, payWith string, amount, limitPrice float64, expiresAt *time.Time) (LimitOrder, error) {
	return b.place(SideBuy, instrument, payWith, amount, limitPrice, expiresAt)
}

// LimitSell rests a sell that fills when price rises to the limit or above.
func (b *LimitBook) LimitSell(instrument, settleTo string, amount, limitPrice float64, expiresAt *time.Time) (LimitOrder, error) {
	return b.place(SideSell, instrument, settleTo, amount, limitPrice, expiresAt)
}

func (b *LimitBook) Cancel(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("cancel %s: %w", id, ErrNotFound)
	}
	if o.terminal() {
		return fmt.Errorf("cancel %s (%s): %w", id, o.Status, ErrNotActive)
	}
	o.Status = LimitCancelled
	return nil
}

func (b *LimitBook) Get(id string) (LimitOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return LimitOrder{}, false
	}
	return *o, true
}

func (b *LimitBook) List() []LimitOrder {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]LimitOrder, 0, len(b.seq))
	for _, id := range b.seq {
		out = append(out, *b.orders[id])
	}
	return out
}

// Evaluate fills or expires open orders on the tick's instrument. Like the
// conditional book, the terminal status lands before execution is
// dispatched.
func (b *LimitBook) Evaluate(tick market.Tick) (filled, expired []LimitOrder) {
	now := tick.At
	if now.IsZero() {
		now = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.seq {
		o := b.orders[id]
		if o.Status != LimitOpen || o.Instrument != tick.Instrument {
			continue
		}
		if o.ExpiresAt != nil && !now.Before(*o.ExpiresAt) {
			o.Status = LimitExpired
			expired = append(expired, *o)
			continue
		}
		crossed := (o.Side == SideBuy && tick.Price <= o.LimitPrice) ||
			(o.Side == SideSell && tick.Price >= o.LimitPrice)
		if !crossed {
			continue
		}
		o.Status = LimitFilled
		at := now
		o.FilledAt = &at
		filled = append(filled, *o)
	}
	return filled, expired
}

// RecordFill stores the executed price and amount on an already-filled
// order once the execution result comes back.
func (b *LimitBook) RecordFill(id string, price, amount float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("record fill %s: %w", id, ErrNotFound)
	}
	if o.Status != LimitFilled {
		return fmt.Errorf("record fill %s (%s): %w", id, o.Status, ErrNotActive)
	}
	o.FilledPrice = price
	o.FilledAmount = amount
	return nil
}
