// Package orders keeps the engine's standing instructions: conditional
// stop/take-profit/trailing orders and resting limit orders. Books are pure
// state machines; they decide what fires on a tick but never execute trades
// themselves.
package orders

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrNotActive      = errors.New("order is not active")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrInvalidTrigger = errors.New("trigger price must be positive")
	ErrInvalidPercent = errors.New("trailing percent must be in (0, 100)")
	ErrNoMarketPrice  = errors.New("no market price for instrument")
)

type ConditionalKind string

const (
	KindStopLoss     ConditionalKind = "stop_loss"
	KindTakeProfit   ConditionalKind = "take_profit"
	KindTrailingStop ConditionalKind = "trailing_stop"
)

type ConditionalStatus string

const (
	StatusActive    ConditionalStatus = "active"
	StatusTriggered ConditionalStatus = "triggered"
	StatusCancelled ConditionalStatus = "cancelled"
	StatusExpired   ConditionalStatus = "expired"
)

// ConditionalOrder is a standing stop-loss, take-profit or trailing-stop
// instruction. Status moves one way: active is the only non-terminal state.
type ConditionalOrder struct {
	ID           string            `json:"id"`
	Kind         ConditionalKind   `json:"kind"`
	Instrument   string            `json:"instrument"`
	Settlement   string            `json:"settlement"`
	Amount       float64           `json:"amount"`
	TriggerPrice float64           `json:"trigger_price"`
	TrailingPct  float64           `json:"trailing_pct,omitempty"`
	HighestSeen  float64           `json:"highest_seen,omitempty"`
	Status       ConditionalStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	TriggeredAt  *time.Time        `json:"triggered_at,omitempty"`
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type LimitStatus string

const (
	LimitOpen      LimitStatus = "open"
	LimitFilled    LimitStatus = "filled"
	LimitCancelled LimitStatus = "cancelled"
	LimitExpired   LimitStatus = "expired"
)

// LimitOrder is a resting order that fills when price crosses its limit.
type LimitOrder struct {
	ID           string      `json:"id"`
	Side         Side        `json:"side"`
	Instrument   string      `json:"instrument"`
	Settlement   string      `json:"settlement"`
	Amount       float64     `json:"amount"`
	LimitPrice   float64     `json:"limit_price"`
	Status       LimitStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    *time.Time  `json:"expires_at,omitempty"`
	FilledAt     *time.Time  `json:"filled_at,omitempty"`
	FilledPrice  float64     `json:"filled_price,omitempty"`
	FilledAmount float64     `json:"filled_amount,omitempty"`
}

func (o *ConditionalOrder) terminal() bool { return o.Status != StatusActive }

func (o *LimitOrder) terminal() bool { return o.Status != LimitOpen }
