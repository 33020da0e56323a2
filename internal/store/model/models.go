package model

import "gorm.io/datatypes"

// TradeResultModel is one execution outcome, any path.
type TradeResultModel struct {
	ID             int64          `gorm:"column:id;primaryKey"`
	TradeID        string         `gorm:"column:trade_id;uniqueIndex"`
	InstrumentIn   string         `gorm:"column:instrument_in;index"`
	InstrumentOut  string         `gorm:"column:instrument_out;index"`
	AmountIn       float64        `gorm:"column:amount_in"`
	AmountOut      float64        `gorm:"column:amount_out"`
	EffectivePrice float64        `gorm:"column:effective_price"`
	Status         string         `gorm:"column:status"`
	Reason         string         `gorm:"column:reason"`
	Strategy       string         `gorm:"column:strategy;index"`
	LatencyMs      int64          `gorm:"column:latency_ms"`
	Chunks         int            `gorm:"column:chunks"`
	Detail         datatypes.JSON `gorm:"column:detail"`
	ExecutedAtUnix int64          `gorm:"column:executed_at"`
	CreatedAtUnix  int64          `gorm:"column:created_at;autoCreateTime"`
}

func (TradeResultModel) TableName() string { return "trade_results" }

// ConditionalOrderModel snapshots a conditional order once it reaches a
// terminal status.
type ConditionalOrderModel struct {
	ID              int64   `gorm:"column:id;primaryKey"`
	OrderID         string  `gorm:"column:order_id;uniqueIndex"`
	Kind            string  `gorm:"column:kind;index"`
	Instrument      string  `gorm:"column:instrument;index"`
	Settlement      string  `gorm:"column:settlement"`
	Amount          float64 `gorm:"column:amount"`
	TriggerPrice    float64 `gorm:"column:trigger_price"`
	TrailingPct     float64 `gorm:"column:trailing_pct"`
	HighestSeen     float64 `gorm:"column:highest_seen"`
	Status          string  `gorm:"column:status;index"`
	CreatedAtUnix   int64   `gorm:"column:created_at"`
	TriggeredAtUnix int64   `gorm:"column:triggered_at"`
}

func (ConditionalOrderModel) TableName() string { return "conditional_orders" }

// LimitOrderModel snapshots a limit order once it reaches a terminal status.
type LimitOrderModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	OrderID       string  `gorm:"column:order_id;uniqueIndex"`
	Side          string  `gorm:"column:side"`
	Instrument    string  `gorm:"column:instrument;index"`
	Settlement    string  `gorm:"column:settlement"`
	Amount        float64 `gorm:"column:amount"`
	LimitPrice    float64 `gorm:"column:limit_price"`
	Status        string  `gorm:"column:status;index"`
	FilledPrice   float64 `gorm:"column:filled_price"`
	FilledAmount  float64 `gorm:"column:filled_amount"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
	FilledAtUnix  int64   `gorm:"column:filled_at"`
}

func (LimitOrderModel) TableName() string { return "limit_orders" }
