package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"ordex/internal/capability"
	"ordex/internal/logger"
	"ordex/internal/metrics"
	"ordex/internal/pkg/circuit"
)

// FaultToleranceConfig governs retries, timeouts and circuit breaking for
// agent-to-agent execution.
type FaultToleranceConfig struct {
	MaxRetries              int
	RetryDelay              time.Duration
	CallTimeout             time.Duration
	CircuitBreakerThreshold int
	CircuitResetTimeout     time.Duration
	FallbackTargets         []string
}

// RemoteOperation names the capability to run on another agent.
type RemoteOperation struct {
	CapabilityID string
	Inputs       map[string]any
}

// RemoteExecutor wraps agent-to-agent calls with per-attempt timeouts,
// exponential backoff and a per-target circuit breaker. Failure counters
// reset on any success against that target.
type RemoteExecutor struct {
	inv      capability.RemoteInvoker
	cfg      FaultToleranceConfig
	breakers *circuit.Group

	sleep func(ctx context.Context, d time.Duration)
}

func NewRemoteExecutor(cfg FaultToleranceConfig, inv capability.RemoteInvoker) *RemoteExecutor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.CircuitResetTimeout <= 0 {
		cfg.CircuitResetTimeout = time.Minute
	}
	return &RemoteExecutor{
		inv:      inv,
		cfg:      cfg,
		breakers: circuit.NewGroup(cfg.CircuitBreakerThreshold, cfg.CircuitResetTimeout),
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
	}
}

// FailureCount reports the current consecutive failure count for a target.
func (x *RemoteExecutor) FailureCount(target string) int {
	return x.breakers.For(target).Failures()
}

// ExecuteWithFaultTolerance tries the primary target and then each fallback
// in order. Targets with an open circuit are skipped without consuming any
// retry budget. The returned result is never an error value: exhaustion is
// data for the caller to interpret.
func (x *RemoteExecutor) ExecuteWithFaultTolerance(ctx context.Context, op RemoteOperation, primary string, fallbacks ...string) RemoteResult {
	start := time.Now()
	targets := append([]string{primary}, fallbacks...)
	if len(fallbacks) == 0 && len(x.cfg.FallbackTargets) > 0 {
		targets = append(targets, x.cfg.FallbackTargets...)
	}

	res := RemoteResult{}
	var lastErr error
	for i, target := range targets {
		cb := x.breakers.For(target)
		if !cb.Allow() {
			logger.Warnf("remote: circuit open for %s, skipping", target)
			res.CircuitSkipped = append(res.CircuitSkipped, target)
			continue
		}
		for attempt := 0; attempt < x.cfg.MaxRetries; attempt++ {
			if attempt > 0 {
				x.sleep(ctx, x.cfg.RetryDelay*time.Duration(1<<uint(attempt-1)))
			}
			res.Attempts++
			output, err := x.callOnce(ctx, target, op)
			if err == nil {
				cb.RecordSuccess()
				metrics.RemoteAttempts.WithLabelValues("success").Inc()
				res.Success = true
				res.Target = target
				res.UsedFallback = i > 0
				res.Output = output
				res.Latency = time.Since(start)
				return res
			}
			lastErr = err
			cb.RecordFailure()
			metrics.RemoteAttempts.WithLabelValues("failure").Inc()
			logger.Warnf("remote: %s attempt %d/%d on %s failed: %v",
				op.CapabilityID, attempt+1, x.cfg.MaxRetries, target, err)
			if !capability.IsRetryable(err) {
				// Validation-style rejections will not improve with retries
				// or another target.
				res.FailureReason = fmt.Sprintf("non-retryable: %v", err)
				res.Latency = time.Since(start)
				return res
			}
			if ctx.Err() != nil {
				res.FailureReason = ctx.Err().Error()
				res.Latency = time.Since(start)
				return res
			}
		}
	}

	switch {
	case lastErr != nil:
		res.FailureReason = fmt.Sprintf("all targets exhausted: %v", lastErr)
	case len(res.CircuitSkipped) == len(targets):
		res.FailureReason = "all targets circuit-open"
	default:
		res.FailureReason = "no targets available"
	}
	res.Latency = time.Since(start)
	return res
}

func (x *RemoteExecutor) callOnce(ctx context.Context, target string, op RemoteOperation) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, x.cfg.CallTimeout)
	defer cancel()
	raw, err := x.inv.A2AInvoke(callCtx, target, op.CapabilityID, op.Inputs)
	if err != nil {
		return nil, err
	}
	// Remote agents report application failures in-band.
	if ok := gjson.GetBytes(raw, "success"); ok.Exists() && !ok.Bool() {
		msg := gjson.GetBytes(raw, "error").String()
		if msg == "" {
			msg = "remote agent reported failure"
		}
		return nil, fmt.Errorf("%s: %s", target, msg)
	}
	return raw, nil
}
