// Package capability is the engine's only boundary to the outside world.
// Everything the engine needs remotely (prices, swaps, MEV analysis) goes
// through an Invoker; loosely typed outputs are decoded into typed results
// here so internal logic never touches raw maps.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ordex/internal/pkg/convert"
)

// Capability ids served by the shared router.
const (
	CapPriceLookup = "price.lookup"
	CapSwapExecute = "swap.execute"
	CapMEVAnalyze  = "mev.analyze"
)

// Result is the raw shape every capability call resolves to. A transport
// failure is folded into the same shape by the adapter, so callers only ever
// see one kind of failure.
type Result struct {
	Success bool           `json:"success"`
	Outputs map[string]any `json:"outputs"`
	Err     string         `json:"error,omitempty"`
}

// Invoker performs request/response calls against the shared capability
// router.
type Invoker interface {
	Invoke(ctx context.Context, capabilityID string, inputs map[string]any) (Result, error)
}

// RemoteInvoker calls a capability hosted by another trading agent. The
// payload comes back as raw JSON; callers decode what they need.
type RemoteInvoker interface {
	A2AInvoke(ctx context.Context, target, capabilityID string, inputs map[string]any) (json.RawMessage, error)
}

// PriceQuote is the decoded result of a price.lookup call.
type PriceQuote struct {
	Instrument string
	PriceUSD   float64
	At         time.Time
}

// SwapRequest describes a swap.execute call. A non-empty Route pins the swap
// to a previously discovered route so the venue skips route discovery.
type SwapRequest struct {
	InstrumentIn  string
	InstrumentOut string
	Amount        float64
	SlippagePct   float64
	Privacy       string
	SkipMEVCheck  bool
	Route         string
}

// SwapOutcome is the decoded result of a successful swap.
type SwapOutcome struct {
	AmountOut      float64
	EffectivePrice float64
	Route          string
	SavingsUSD     float64
	FeeUSD         float64
}

// MEVAssessment is the decoded result of an mev.analyze call. The risk score
// is consumed, never computed, by this engine.
type MEVAssessment struct {
	RiskScore      float64
	Recommendation string
	EstSavingsUSD  float64
}

// Client wraps an Invoker with typed per-capability methods.
type Client struct {
	inv Invoker
}

func NewClient(inv Invoker) *Client {
	return &Client{inv: inv}
}

func (c *Client) invoke(ctx context.Context, id string, inputs map[string]any) (map[string]any, error) {
	res, err := c.inv.Invoke(ctx, id, inputs)
	if err != nil {
		return nil, fmt.Errorf("capability %s: %w", id, err)
	}
	if !res.Success {
		msg := res.Err
		if msg == "" {
			msg = "unspecified failure"
		}
		return nil, fmt.Errorf("capability %s: %s", id, msg)
	}
	return res.Outputs, nil
}

// LookupPrice fetches the current USD price of an instrument.
func (c *Client) LookupPrice(ctx context.Context, instrument string) (PriceQuote, error) {
	instrument = strings.ToUpper(strings.TrimSpace(instrument))
	if instrument == "" {
		return PriceQuote{}, fmt.Errorf("price.lookup: instrument required")
	}
	out, err := c.invoke(ctx, CapPriceLookup, map[string]any{"instrument": instrument})
	if err != nil {
		return PriceQuote{}, err
	}
	price := convert.ToFloat64(out["price_usd"])
	if price <= 0 {
		price = convert.ToFloat64(out["price"])
	}
	if price <= 0 {
		return PriceQuote{}, fmt.Errorf("price.lookup: no usable price for %s", instrument)
	}
	return PriceQuote{Instrument: instrument, PriceUSD: price, At: time.Now()}, nil
}

// ExecuteSwap submits a swap and decodes the execution outcome.
func (c *Client) ExecuteSwap(ctx context.Context, req SwapRequest) (SwapOutcome, error) {
	if req.InstrumentIn == "" || req.InstrumentOut == "" {
		return SwapOutcome{}, fmt.Errorf("swap.execute: instrument pair required")
	}
	if req.Amount <= 0 {
		return SwapOutcome{}, fmt.Errorf("swap.execute: amount must be positive")
	}
	inputs := map[string]any{
		"instrument_in":  req.InstrumentIn,
		"instrument_out": req.InstrumentOut,
		"amount":         req.Amount,
	}
	if req.SlippagePct > 0 {
		inputs["slippage_pct"] = req.SlippagePct
	}
	if req.Privacy != "" {
		inputs["privacy"] = req.Privacy
	}
	if req.SkipMEVCheck {
		inputs["skip_mev_check"] = true
	}
	if req.Route != "" {
		inputs["route"] = req.Route
	}
	out, err := c.invoke(ctx, CapSwapExecute, inputs)
	if err != nil {
		return SwapOutcome{}, err
	}
	oc := SwapOutcome{
		AmountOut:      convert.ToFloat64(out["amount_out"]),
		EffectivePrice: convert.ToFloat64(out["effective_price"]),
		Route:          convert.ToString(out["route"]),
		SavingsUSD:     convert.ToFloat64(out["savings_usd"]),
		FeeUSD:         convert.ToFloat64(out["fee_usd"]),
	}
	if oc.AmountOut <= 0 {
		return SwapOutcome{}, fmt.Errorf("swap.execute: empty fill for %s->%s", req.InstrumentIn, req.InstrumentOut)
	}
	if oc.EffectivePrice <= 0 && oc.AmountOut > 0 {
		oc.EffectivePrice = req.Amount / oc.AmountOut
	}
	return oc, nil
}

// AnalyzeMEV fetches the MEV risk assessment for a pending trade.
func (c *Client) AnalyzeMEV(ctx context.Context, instrumentIn, instrumentOut string, amount float64) (MEVAssessment, error) {
	out, err := c.invoke(ctx, CapMEVAnalyze, map[string]any{
		"instrument_in":  instrumentIn,
		"instrument_out": instrumentOut,
		"amount":         amount,
	})
	if err != nil {
		return MEVAssessment{}, err
	}
	return MEVAssessment{
		RiskScore:      convert.ToFloat64(out["risk_score"]),
		Recommendation: convert.ToString(out["recommendation"]),
		EstSavingsUSD:  convert.ToFloat64(out["estimated_savings_usd"]),
	}, nil
}
