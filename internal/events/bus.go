// Package events carries the engine's outbound notifications. Consumers
// (UI bridges, webhook relays, the journal) subscribe by event kind; the
// engine never hands them direct access to its state.
package events

import (
	"sync"
	"time"

	"ordex/internal/logger"
)

type Kind string

const (
	KindOrderTriggered        Kind = "order_triggered"
	KindOrderExpired          Kind = "order_expired"
	KindLimitOrderFilled      Kind = "limit_order_filled"
	KindLimitOrderExpired     Kind = "limit_order_expired"
	KindDCAExecuted           Kind = "dca_executed"
	KindDCACompleted          Kind = "dca_completed"
	KindStealthTradeCompleted Kind = "stealth_trade_completed"
	KindInstantSwapCompleted  Kind = "instant_swap_completed"
	KindRebalanceCompleted    Kind = "rebalance_completed"
)

// Event is a single engine notification. Payload is one of the *Event
// structs below; every payload carries enough ids and amounts for a consumer
// to reconstruct state without querying the engine back.
type Event struct {
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

type OrderEvent struct {
	OrderID      string  `json:"order_id"`
	OrderKind    string  `json:"order_kind"`
	Instrument   string  `json:"instrument"`
	Settlement   string  `json:"settlement"`
	Amount       float64 `json:"amount"`
	TriggerPrice float64 `json:"trigger_price"`
	MarketPrice  float64 `json:"market_price"`
}

type LimitOrderEvent struct {
	OrderID     string  `json:"order_id"`
	Side        string  `json:"side"`
	Instrument  string  `json:"instrument"`
	Settlement  string  `json:"settlement"`
	Amount      float64 `json:"amount"`
	LimitPrice  float64 `json:"limit_price"`
	MarketPrice float64 `json:"market_price"`
}

type DCAEvent struct {
	ScheduleID         string  `json:"schedule_id"`
	BuyInstrument      string  `json:"buy_instrument"`
	SpendInstrument    string  `json:"spend_instrument"`
	IntervalsCompleted int     `json:"intervals_completed"`
	SpentThisInterval  float64 `json:"spent_this_interval"`
	TotalSpent         float64 `json:"total_spent"`
	TotalAcquired      float64 `json:"total_acquired"`
	AveragePrice       float64 `json:"average_price"`
}

type TradeEvent struct {
	TradeID       string  `json:"trade_id"`
	InstrumentIn  string  `json:"instrument_in"`
	InstrumentOut string  `json:"instrument_out"`
	AmountIn      float64 `json:"amount_in"`
	AmountOut     float64 `json:"amount_out"`
	Status        string  `json:"status"`
	Strategy      string  `json:"strategy"`
	Chunks        int     `json:"chunks,omitempty"`
	WinningPath   string  `json:"winning_path,omitempty"`
}

type RebalanceEvent struct {
	TradesPlanned  int     `json:"trades_planned"`
	TradesExecuted int     `json:"trades_executed"`
	TotalValueUSD  float64 `json:"total_value_usd"`
	DryRun         bool    `json:"dry_run"`
}

type subscription struct {
	kinds map[Kind]bool // nil means all kinds
	ch    chan Event
}

// Bus is an in-process fan-out of engine events. Publish never blocks the
// engine: a subscriber that falls behind loses events and a warning is
// logged.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	closed bool
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving the named kinds, or every kind when
// none are given.
func (b *Bus) Subscribe(buffer int, kinds ...Kind) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscription{ch: make(chan Event, buffer)}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

func (b *Bus) Publish(kind Kind, payload any) {
	evt := Event{Kind: kind, At: time.Now().UTC(), Payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.kinds != nil && !sub.kinds[kind] {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			logger.Warnf("events: subscriber lagging, dropped %s", kind)
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
