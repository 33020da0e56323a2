// Package execution decides how a trade reaches the market and carries it
// out: the router picks a path from notional value, the instant engine
// serves the low-latency path, the stealth engine splits and escalates large
// trades, and the remote executor wraps agent-to-agent calls with retry,
// backoff and circuit breaking.
package execution

import (
	"encoding/json"
	"time"
)

type Path string

const (
	PathInstant Path = "instant"
	PathStealth Path = "stealth"
	PathRemote  Path = "remote"
)

type Status string

const (
	StatusExecuted  Status = "executed"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Privacy tiers, weakest first.
const (
	PrivacyStandard  = "standard"
	PrivacyProtected = "protected"
	PrivacyPrivate   = "private"
	PrivacyMaximum   = "maximum"
)

func privacyRank(p string) int {
	switch p {
	case PrivacyProtected:
		return 1
	case PrivacyPrivate:
		return 2
	case PrivacyMaximum:
		return 3
	default:
		return 0
	}
}

// HigherPrivacy returns the stronger of two tiers.
func HigherPrivacy(a, b string) string {
	if privacyRank(b) > privacyRank(a) {
		return b
	}
	if a == "" {
		return PrivacyStandard
	}
	return a
}

// Result is the immutable record of one execution attempt, successful or
// not. Strategy-specific details hang off the embedding result types.
type Result struct {
	ID             string        `json:"id"`
	InstrumentIn   string        `json:"instrument_in"`
	InstrumentOut  string        `json:"instrument_out"`
	AmountIn       float64       `json:"amount_in"`
	AmountOut      float64       `json:"amount_out"`
	EffectivePrice float64       `json:"effective_price"`
	Status         Status        `json:"status"`
	Reason         string        `json:"reason,omitempty"`
	Latency        time.Duration `json:"latency"`
	Strategy       string        `json:"strategy"`
	ExecutedAt     time.Time     `json:"executed_at"`
}

func (r Result) Succeeded() bool {
	return r.Status == StatusExecuted || r.Status == StatusCompleted
}

// InstantResult is the instant path's result.
type InstantResult struct {
	Result
	MEVChecked    bool `json:"mev_checked"`
	PriceCacheHit bool `json:"price_cache_hit"`
	RouteCacheHit bool `json:"route_cache_hit"`
}

// RaceResult records a race between independent execution paths.
type RaceResult struct {
	Result
	WinningPath string `json:"winning_method"`
}

// ChunkResult is one slice of a split stealth trade.
type ChunkResult struct {
	Index      int     `json:"index"`
	AmountIn   float64 `json:"amount_in"`
	AmountOut  float64 `json:"amount_out"`
	SavingsUSD float64 `json:"savings_usd"`
	Privacy    string  `json:"privacy"`
	Err        string  `json:"error,omitempty"`
}

// StealthResult aggregates the chunk outcomes of a stealth trade.
type StealthResult struct {
	Result
	Privacy         string        `json:"privacy"`
	Chunks          []ChunkResult `json:"chunks"`
	TotalSavingsUSD float64       `json:"total_savings_usd"`
}

// RemoteResult reports a fault-tolerant agent-to-agent execution. It is
// never an error value: exhaustion and circuit-open outcomes are data the
// caller inspects.
type RemoteResult struct {
	Success        bool            `json:"success"`
	Target         string          `json:"target,omitempty"`
	Attempts       int             `json:"attempts"`
	UsedFallback   bool            `json:"used_fallback"`
	CircuitSkipped []string        `json:"circuit_skipped,omitempty"`
	Output         json.RawMessage `json:"output,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	Latency        time.Duration   `json:"latency"`
}

// AllCircuitsOpen reports the case where no target was even attempted,
// distinguishable from "all targets attempted and failed".
func (r RemoteResult) AllCircuitsOpen() bool {
	return !r.Success && r.Attempts == 0 && len(r.CircuitSkipped) > 0
}
