// Package sim is a deterministic in-memory capability provider. It serves
// price lookups from a seeded table and fills swaps at the quoted price less
// a fixed fee, which makes it usable both as a dry-run backend for the
// binary and as the default double in tests.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"ordex/internal/capability"
	"ordex/internal/pkg/convert"
)

const defaultFeePct = 0.1

// Provider implements capability.Invoker and capability.RemoteInvoker.
type Provider struct {
	mu      sync.RWMutex
	prices  map[string]float64
	feePct  float64
	mevRisk float64
}

func NewProvider(prices map[string]float64) *Provider {
	table := make(map[string]float64, len(prices))
	for k, v := range prices {
		table[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	// Stablecoins quote at par unless the seed says otherwise.
	for _, stable := range []string{"USDC", "USDT"} {
		if _, ok := table[stable]; !ok {
			table[stable] = 1
		}
	}
	return &Provider{prices: table, feePct: defaultFeePct}
}

// SetPrice updates a quote, letting tests and demos move the market.
func (p *Provider) SetPrice(instrument string, price float64) {
	p.mu.Lock()
	p.prices[strings.ToUpper(strings.TrimSpace(instrument))] = price
	p.mu.Unlock()
}

// SetMEVRisk fixes the risk score returned by mev.analyze.
func (p *Provider) SetMEVRisk(score float64) {
	p.mu.Lock()
	p.mevRisk = score
	p.mu.Unlock()
}

func (p *Provider) price(instrument string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.prices[strings.ToUpper(strings.TrimSpace(instrument))]
	return price, ok
}

func (p *Provider) Invoke(ctx context.Context, capabilityID string, inputs map[string]any) (capability.Result, error) {
	if err := ctx.Err(); err != nil {
		return capability.Result{}, err
	}
	switch capabilityID {
	case capability.CapPriceLookup:
		instrument := convert.ToString(inputs["instrument"])
		price, ok := p.price(instrument)
		if !ok {
			return capability.Result{Success: false, Err: fmt.Sprintf("no quote for %s", instrument)}, nil
		}
		return capability.Result{Success: true, Outputs: map[string]any{
			"instrument": strings.ToUpper(instrument),
			"price_usd":  price,
		}}, nil
	case capability.CapSwapExecute:
		return p.executeSwap(inputs)
	case capability.CapMEVAnalyze:
		p.mu.RLock()
		risk := p.mevRisk
		p.mu.RUnlock()
		recommendation := "proceed"
		if risk >= 0.7 {
			recommendation = "use_protection"
		}
		return capability.Result{Success: true, Outputs: map[string]any{
			"risk_score":     risk,
			"recommendation": recommendation,
		}}, nil
	default:
		return capability.Result{Success: false, Err: fmt.Sprintf("unknown capability %s", capabilityID)}, nil
	}
}

func (p *Provider) executeSwap(inputs map[string]any) (capability.Result, error) {
	in := convert.ToString(inputs["instrument_in"])
	out := convert.ToString(inputs["instrument_out"])
	amount := convert.ToFloat64(inputs["amount"])
	if amount <= 0 {
		return capability.Result{Success: false, Err: "amount must be positive"}, nil
	}
	priceIn, okIn := p.price(in)
	priceOut, okOut := p.price(out)
	if !okIn || !okOut || priceOut <= 0 {
		return capability.Result{Success: false, Err: fmt.Sprintf("no quote for pair %s/%s", in, out)}, nil
	}
	p.mu.RLock()
	feePct := p.feePct
	p.mu.RUnlock()

	gross := amount * priceIn / priceOut
	fee := gross * feePct / 100
	amountOut := gross - fee
	// A pinned route skips discovery and is echoed back unchanged.
	route := convert.ToString(inputs["route"])
	if route == "" {
		route = fmt.Sprintf("sim:%s-%s", strings.ToUpper(in), strings.ToUpper(out))
	}
	return capability.Result{Success: true, Outputs: map[string]any{
		"amount_out":      amountOut,
		"effective_price": amount / amountOut,
		"route":           route,
		"fee_usd":         fee * priceOut,
	}}, nil
}

// A2AInvoke serves the remote path by answering locally, as if this process
// were its own counterparty agent.
func (p *Provider) A2AInvoke(ctx context.Context, target, capabilityID string, inputs map[string]any) (json.RawMessage, error) {
	res, err := p.Invoke(ctx, capabilityID, inputs)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"success": res.Success, "target": target}
	if res.Err != "" {
		body["error"] = res.Err
	}
	for k, v := range res.Outputs {
		body[k] = v
	}
	return json.Marshal(body)
}
