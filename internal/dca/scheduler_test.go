package dca

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordex/internal/events"
	"ordex/internal/execution"
)

// fixedFillExecutor fills every purchase at a fixed price.
type fixedFillExecutor struct {
	mu    sync.Mutex
	price float64
	fails int // fail this many calls before succeeding
	calls int
}

func (f *fixedFillExecutor) Execute(ctx context.Context, in, out string, amount float64) (execution.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return execution.Result{Status: execution.StatusFailed, Reason: "venue offline"}, nil
	}
	return execution.Result{
		InstrumentIn:   in,
		InstrumentOut:  out,
		AmountIn:       amount,
		AmountOut:      amount / f.price,
		EffectivePrice: f.price,
		Status:         execution.StatusExecuted,
	}, nil
}

func (f *fixedFillExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestDCAFirstIntervalRunsImmediately(t *testing.T) {
	exec := &fixedFillExecutor{price: 100}
	s := NewScheduler(exec, nil)
	defer s.StopAll()

	sched, err := s.Start("SOL", "USDC", 50, time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, sched.Status)
	assert.Equal(t, 1, sched.IntervalsCompleted)
	assert.Equal(t, 50.0, sched.TotalSpent)
	assert.InDelta(t, 0.5, sched.TotalAcquired, 1e-9)
	assert.InDelta(t, 100.0, sched.AveragePrice, 1e-9)
	assert.False(t, sched.NextExecution.IsZero())
}

func TestDCACompletesAfterTotalIntervals(t *testing.T) {
	exec := &fixedFillExecutor{price: 100}
	bus := events.NewBus()
	defer bus.Close()
	done := bus.Subscribe(4, events.KindDCACompleted)

	s := NewScheduler(exec, bus)
	defer s.StopAll()

	sched, err := s.Start("SOL", "USDC", 50, 5*time.Millisecond, 3)
	require.NoError(t, err)

	select {
	case evt := <-done:
		payload := evt.Payload.(events.DCAEvent)
		assert.Equal(t, sched.ID, payload.ScheduleID)
		assert.Equal(t, 3, payload.IntervalsCompleted)
		assert.InDelta(t, 150.0, payload.TotalSpent, 1e-9)
		assert.InDelta(t, 100.0, payload.AveragePrice, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("schedule did not complete in time")
	}

	got, ok := s.Get(sched.ID)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 3, got.IntervalsCompleted)
	assert.True(t, got.NextExecution.IsZero())
	assert.Equal(t, 3, exec.callCount())
}

func TestDCAAveragePriceInvariant(t *testing.T) {
	// Varying fill prices: average must equal spent/acquired, not the mean
	// of the prices.
	exec := &fixedFillExecutor{price: 100}
	s := NewScheduler(exec, nil)
	defer s.StopAll()

	sched, err := s.Start("SOL", "USDC", 100, time.Hour, 0)
	require.NoError(t, err)

	exec.mu.Lock()
	exec.price = 200
	exec.mu.Unlock()
	require.False(t, s.executeInterval(sched.ID))

	got, _ := s.Get(sched.ID)
	assert.Equal(t, 2, got.IntervalsCompleted)
	assert.InDelta(t, 200.0, got.TotalSpent, 1e-9)
	assert.InDelta(t, 1.5, got.TotalAcquired, 1e-9) // 1 @100 + 0.5 @200
	assert.InDelta(t, 200.0/1.5, got.AveragePrice, 1e-9)
}

func TestDCAFailedIntervalDoesNotCount(t *testing.T) {
	exec := &fixedFillExecutor{price: 100, fails: 1}
	s := NewScheduler(exec, nil)
	defer s.StopAll()

	sched, err := s.Start("SOL", "USDC", 50, time.Hour, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, sched.IntervalsCompleted)
	assert.Equal(t, StatusActive, sched.Status)
	assert.Zero(t, sched.TotalSpent)

	// The next interval succeeds and counts.
	require.False(t, s.executeInterval(sched.ID))
	got, _ := s.Get(sched.ID)
	assert.Equal(t, 1, got.IntervalsCompleted)
}

func TestDCAPauseResumeStop(t *testing.T) {
	exec := &fixedFillExecutor{price: 100}
	s := NewScheduler(exec, nil)
	defer s.StopAll()

	sched, err := s.Start("SOL", "USDC", 50, time.Hour, 0)
	require.NoError(t, err)

	require.NoError(t, s.Pause(sched.ID))
	got, _ := s.Get(sched.ID)
	assert.Equal(t, StatusPaused, got.Status)
	assert.True(t, got.NextExecution.IsZero())

	// Pausing twice is rejected; resuming an active schedule too.
	assert.ErrorIs(t, s.Pause(sched.ID), ErrNotActive)
	require.NoError(t, s.Resume(sched.ID))
	assert.ErrorIs(t, s.Resume(sched.ID), ErrNotPaused)

	require.NoError(t, s.Stop(sched.ID))
	got, _ = s.Get(sched.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	// Totals survive cancellation.
	assert.Equal(t, 50.0, got.TotalSpent)

	assert.ErrorIs(t, s.Pause("missing"), ErrNotFound)
}

func TestDCAValidation(t *testing.T) {
	s := NewScheduler(&fixedFillExecutor{price: 100}, nil)
	defer s.StopAll()

	_, err := s.Start("", "USDC", 50, time.Hour, 0)
	assert.Error(t, err)
	_, err = s.Start("SOL", "USDC", 0, time.Hour, 0)
	assert.Error(t, err)
	_, err = s.Start("SOL", "USDC", 50, 0, 0)
	assert.ErrorIs(t, err, ErrBadInterval)
	_, err = s.Start("SOL", "USDC", 50, time.Hour, -1)
	assert.Error(t, err)
}
