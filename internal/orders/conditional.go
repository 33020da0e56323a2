package orders

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ordex/internal/logger"
	"ordex/internal/market"
)

// ConditionalBook holds every conditional order ever placed on this engine.
// Terminal orders are retained for audit; only active ones are evaluated.
type ConditionalBook struct {
	mu     sync.Mutex
	orders map[string]*ConditionalOrder
	seq    []string // registration order, drives evaluation order
}

func NewConditionalBook() *ConditionalBook {
	return &ConditionalBook{orders: make(map[string]*ConditionalOrder)}
}

func (b *ConditionalBook) add(o *ConditionalOrder) ConditionalOrder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[o.ID] = o
	b.seq = append(b.seq, o.ID)
	return *o
}

func (b *ConditionalBook) newOrder(kind ConditionalKind, instrument, settlement string, trigger, amount float64, expiresAt *time.Time) (*ConditionalOrder, error) {
	instrument = market.Normalize(instrument)
	settlement = market.Normalize(settlement)
	if instrument == "" || settlement == "" {
		return nil, fmt.Errorf("%s: instrument and settlement required", kind)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%s %s: %w", kind, instrument, ErrInvalidAmount)
	}
	if trigger <= 0 {
		return nil, fmt.Errorf("%s %s: %w", kind, instrument, ErrInvalidTrigger)
	}
	return &ConditionalOrder{
		ID:           uuid.NewString(),
		Kind:         kind,
		Instrument:   instrument,
		Settlement:   settlement,
		Amount:       amount,
		TriggerPrice: trigger,
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    expiresAt,
	}, nil
}

// SetStopLoss arms a sell-on-drop order that fires when price falls to the
// trigger or below.
func (b *ConditionalBook) SetStopLoss(instrument, settlement string, trigger, amount float64, expiresAt *time.Time) (ConditionalOrder, error) {
	o, err := b.newOrder(KindStopLoss, instrument, settlement, trigger, amount, expiresAt)
	if err != nil {
		return ConditionalOrder{}, err
	}
	return b.add(o), nil
}

// SetTakeProfit arms an order that fires when price rises to the trigger or
// above.
func (b *ConditionalBook) SetTakeProfit(instrument, settlement string, trigger, amount float64, expiresAt *time.Time) (ConditionalOrder, error) {
	o, err := b.newOrder(KindTakeProfit, instrument, settlement, trigger, amount, expiresAt)
	if err != nil {
		return ConditionalOrder{}, err
	}
	return b.add(o), nil
}

// SetTrailingStop arms a stop that trails the highest price seen by
// trailingPct. The initial trigger is computed from the current price.
func (b *ConditionalBook) SetTrailingStop(instrument, settlement string, trailingPct, amount, currentPrice float64, expiresAt *time.Time) (ConditionalOrder, error) {
	if trailingPct <= 0 || trailingPct >= 100 {
		return ConditionalOrder{}, fmt.Errorf("trailing_stop %s: %w", instrument, ErrInvalidPercent)
	}
	if currentPrice <= 0 {
		return ConditionalOrder{}, fmt.Errorf("trailing_stop %s: %w", instrument, ErrNoMarketPrice)
	}
	trigger := currentPrice * (1 - trailingPct/100)
	o, err := b.newOrder(KindTrailingStop, instrument, settlement, trigger, amount, expiresAt)
	if err != nil {
		return ConditionalOrder{}, err
	}
	o.TrailingPct = trailingPct
	o.HighestSeen = currentPrice
	return b.add(o), nil
}

// Cancel marks an active order cancelled. In-flight executions of an
// already-triggered order are unaffected.
func (b *ConditionalBook) Cancel(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("cancel %s: %w", id, ErrNotFound)
	}
	if o.terminal() {
		return fmt.Errorf("cancel %s (%s): %w", id, o.Status, ErrNotActive)
	}
	o.Status = StatusCancelled
	return nil
}

// Get returns a copy of the order.
func (b *ConditionalBook) Get(id string) (ConditionalOrder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return ConditionalOrder{}, false
	}
	return *o, true
}

// List returns copies of all orders in registration order.
func (b *ConditionalBook) List() []ConditionalOrder {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ConditionalOrder, 0, len(b.seq))
	for _, id := range b.seq {
		out = append(out, *b.orders[id])
	}
	return out
}

// Evaluate runs one tick over every active order on the tick's instrument,
// in registration order. Expiry is checked before trigger conditions. Fired
// and expired orders have their terminal status committed here, before any
// execution is dispatched, so a later tick cannot re-fire them.
func (b *ConditionalBook) Evaluate(tick market.Tick) (fired, expired []ConditionalOrder) {
	now := tick.At
	if now.IsZero() {
		now = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range b.seq {
		o := b.orders[id]
		if o.Status != StatusActive || o.Instrument != tick.Instrument {
			continue
		}
		if o.ExpiresAt != nil && !now.Before(*o.ExpiresAt) {
			o.Status = StatusExpired
			expired = append(expired, *o)
			continue
		}
		if o.Kind == KindTrailingStop {
			if tick.Price > o.HighestSeen {
				o.HighestSeen = tick.Price
				o.TriggerPrice = o.HighestSeen * (1 - o.TrailingPct/100)
			}
		}
		if !shouldFire(o, tick.Price) {
			continue
		}
		o.Status = StatusTriggered
		at := now
		o.TriggeredAt = &at
		fired = append(fired, *o)
		logger.Debugf("orders: %s %s fired trigger=%.6f price=%.6f", o.Kind, o.ID, o.TriggerPrice, tick.Price)
	}
	return fired, expired
}

func shouldFire(o *ConditionalOrder, price float64) bool {
	switch o.Kind {
	case KindStopLoss, KindTrailingStop:
		return price <= o.TriggerPrice
	case KindTakeProfit:
		return price >= o.TriggerPrice
	default:
		return false
	}
}
