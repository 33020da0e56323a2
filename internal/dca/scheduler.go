// Package dca runs recurring fixed-amount purchase schedules. Each schedule
// owns a timer loop; the clock and timer source are injectable so tests
// drive virtual time.
package dca

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ordex/internal/events"
	"ordex/internal/execution"
	"ordex/internal/logger"
	"ordex/internal/market"
	"ordex/internal/pkg/trading"
)

var (
	ErrNotFound    = errors.New("schedule not found")
	ErrNotActive   = errors.New("schedule is not active")
	ErrNotPaused   = errors.New("schedule is not paused")
	ErrBadInterval = errors.New("interval must be positive")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// TradeExecutor submits the per-interval purchase through the routed
// execution path.
type TradeExecutor interface {
	Execute(ctx context.Context, instrumentIn, instrumentOut string, amount float64) (execution.Result, error)
}

// Schedule is a read-only snapshot of one DCA schedule.
type Schedule struct {
	ID                 string        `json:"id"`
	BuyInstrument      string        `json:"buy_instrument"`
	SpendInstrument    string        `json:"spend_instrument"`
	AmountPerInterval  float64       `json:"amount_per_interval"`
	Interval           time.Duration `json:"interval"`
	TotalIntervals     int           `json:"total_intervals,omitempty"` // 0 = unbounded
	IntervalsCompleted int           `json:"intervals_completed"`
	TotalSpent         float64       `json:"total_spent"`
	TotalAcquired      float64       `json:"total_acquired"`
	AveragePrice       float64       `json:"average_price"`
	Status             Status        `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	NextExecution      time.Time     `json:"next_execution,omitempty"`
}

type ctrl int

const (
	ctrlPause ctrl = iota
	ctrlResume
	ctrlStop
)

type schedule struct {
	id                 string
	buyInstrument      string
	spendInstrument    string
	amountPerInterval  float64
	interval           time.Duration
	totalIntervals     int
	intervalsCompleted int
	totalSpent         decimal.Decimal
	totalAcquired      decimal.Decimal
	status             Status
	createdAt          time.Time
	nextExecution      time.Time

	ctrlCh chan ctrl
}

// Scheduler owns every schedule of one engine instance.
type Scheduler struct {
	exec TradeExecutor
	bus  *events.Bus

	mu        sync.Mutex
	schedules map[string]*schedule
	wg        sync.WaitGroup

	nowFn func() time.Time
	after func(d time.Duration) <-chan time.Time
}

func NewScheduler(exec TradeExecutor, bus *events.Bus) *Scheduler {
	return &Scheduler{
		exec:      exec,
		bus:       bus,
		schedules: make(map[string]*schedule),
		nowFn:     time.Now,
		after:     time.After,
	}
}

// Start creates a schedule, executes its first interval immediately, then
// arms the recurring timer. totalIntervals of 0 runs until stopped.
func (s *Scheduler) Start(buyInstrument, spendInstrument string, amountPerInterval float64, interval time.Duration, totalIntervals int) (Schedule, error) {
	buyInstrument = market.Normalize(buyInstrument)
	spendInstrument = market.Normalize(spendInstrument)
	if buyInstrument == "" || spendInstrument == "" {
		return Schedule{}, fmt.Errorf("dca: buy and spend instruments required")
	}
	if amountPerInterval <= 0 {
		return Schedule{}, fmt.Errorf("dca: amount per interval must be positive")
	}
	if interval <= 0 {
		return Schedule{}, fmt.Errorf("dca %s: %w", buyInstrument, ErrBadInterval)
	}
	if totalIntervals < 0 {
		return Schedule{}, fmt.Errorf("dca: total intervals cannot be negative")
	}

	sched := &schedule{
		id:                uuid.NewString(),
		buyInstrument:     buyInstrument,
		spendInstrument:   spendInstrument,
		amountPerInterval: amountPerInterval,
		interval:          interval,
		totalIntervals:    totalIntervals,
		totalSpent:        decimal.Zero,
		totalAcquired:     decimal.Zero,
		status:            StatusActive,
		createdAt:         s.nowFn().UTC(),
		ctrlCh:            make(chan ctrl, 1),
	}
	s.mu.Lock()
	s.schedules[sched.id] = sched
	s.mu.Unlock()

	logger.Infof("dca: schedule %s started buy=%s spend=%s amount=%.2f interval=%s total=%d",
		sched.id, buyInstrument, spendInstrument, amountPerInterval, interval, totalIntervals)

	done := s.executeInterval(sched.id)
	if !done {
		s.wg.Add(1)
		go s.run(sched)
	}
	snap, _ := s.Get(sched.id)
	return snap, nil
}

func (s *Scheduler) run(sched *schedule) {
	defer s.wg.Done()
	timer := s.after(sched.interval)
	for {
		select {
		case msg := <-sched.ctrlCh:
			switch msg {
			case ctrlStop:
				return
			case ctrlPause:
				for {
					m := <-sched.ctrlCh
					if m == ctrlStop {
						return
					}
					if m == ctrlResume {
						// Resume re-arms at the original cadence; missed
						// intervals are not replayed.
						timer = s.after(sched.interval)
						break
					}
				}
			}
		case <-timer:
			if s.executeInterval(sched.id) {
				return
			}
			timer = s.after(sched.interval)
		}
	}
}

// executeInterval runs one purchase. Returns true when the schedule reached
// a terminal state. A failed execution does not count toward completion.
func (s *Scheduler) executeInterval(id string) bool {
	s.mu.Lock()
	sched, ok := s.schedules[id]
	if !ok || sched.status != StatusActive {
		s.mu.Unlock()
		return true
	}
	spend := sched.spendInstrument
	buy := sched.buyInstrument
	amount := sched.amountPerInterval
	s.mu.Unlock()

	res, err := s.exec.Execute(context.Background(), spend, buy, amount)
	if err != nil || !res.Succeeded() {
		reason := ""
		if err != nil {
			reason = err.Error()
		} else {
			reason = res.Reason
		}
		logger.Warnf("dca: schedule %s interval failed: %s", id, reason)
		s.mu.Lock()
		if sched.status == StatusActive {
			sched.nextExecution = s.nowFn().UTC().Add(sched.interval)
		}
		s.mu.Unlock()
		return false
	}

	s.mu.Lock()
	sched.intervalsCompleted++
	sched.totalSpent = sched.totalSpent.Add(decimal.NewFromFloat(amount))
	sched.totalAcquired = sched.totalAcquired.Add(decimal.NewFromFloat(res.AmountOut))
	avg, _ := trading.AveragePrice(sched.totalSpent, sched.totalAcquired).Float64()
	spent, _ := sched.totalSpent.Float64()
	acquired, _ := sched.totalAcquired.Float64()
	completedIntervals := sched.intervalsCompleted
	completed := sched.totalIntervals > 0 && sched.intervalsCompleted >= sched.totalIntervals
	if completed {
		sched.status = StatusCompleted
		sched.nextExecution = time.Time{}
	} else {
		sched.nextExecution = s.nowFn().UTC().Add(sched.interval)
	}
	s.mu.Unlock()

	evt := events.DCAEvent{
		ScheduleID:         id,
		BuyInstrument:      buy,
		SpendInstrument:    spend,
		IntervalsCompleted: completedIntervals,
		SpentThisInterval:  amount,
		TotalSpent:         spent,
		TotalAcquired:      acquired,
		AveragePrice:       avg,
	}
	if s.bus != nil {
		s.bus.Publish(events.KindDCAExecuted, evt)
		if completed {
			s.bus.Publish(events.KindDCACompleted, evt)
		}
	}
	if completed {
		logger.Infof("dca: schedule %s completed after %d intervals, avg price %.6f", id, completedIntervals, avg)
	}
	return completed
}

// Pause stops the timer without losing accumulated totals.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	sched, ok := s.schedules[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("dca pause %s: %w", id, ErrNotFound)
	}
	if sched.status != StatusActive {
		s.mu.Unlock()
		return fmt.Errorf("dca pause %s (%s): %w", id, sched.status, ErrNotActive)
	}
	sched.status = StatusPaused
	sched.nextExecution = time.Time{}
	s.mu.Unlock()
	sched.ctrlCh <- ctrlPause
	return nil
}

// Resume re-arms the timer at the original cadence.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	sched, ok := s.schedules[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("dca resume %s: %w", id, ErrNotFound)
	}
	if sched.status != StatusPaused {
		s.mu.Unlock()
		return fmt.Errorf("dca resume %s (%s): %w", id, sched.status, ErrNotPaused)
	}
	sched.status = StatusActive
	sched.nextExecution = s.nowFn().UTC().Add(sched.interval)
	s.mu.Unlock()
	sched.ctrlCh <- ctrlResume
	return nil
}

// Stop cancels the schedule. Totals remain readable afterwards.
func (s *Scheduler) Stop(id string) error {
	s.mu.Lock()
	sched, ok := s.schedules[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("dca stop %s: %w", id, ErrNotFound)
	}
	if sched.status != StatusActive && sched.status != StatusPaused {
		s.mu.Unlock()
		return nil
	}
	sched.status = StatusCancelled
	sched.nextExecution = time.Time{}
	s.mu.Unlock()
	sched.ctrlCh <- ctrlStop
	return nil
}

// StopAll cancels every running schedule and waits for their loops to exit.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.schedules))
	for id := range s.schedules {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		_ = s.Stop(id)
	}
	s.wg.Wait()
}

func (s *Scheduler) Get(id string) (Schedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return Schedule{}, false
	}
	return s.snapshot(sched), true
}

func (s *Scheduler) List() []Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, s.snapshot(sched))
	}
	return out
}

func (s *Scheduler) snapshot(sched *schedule) Schedule {
	spent, _ := sched.totalSpent.Float64()
	acquired, _ := sched.totalAcquired.Float64()
	avg, _ := trading.AveragePrice(sched.totalSpent, sched.totalAcquired).Float64()
	return Schedule{
		ID:                 sched.id,
		BuyInstrument:      sched.buyInstrument,
		SpendInstrument:    sched.spendInstrument,
		AmountPerInterval:  sched.amountPerInterval,
		Interval:           sched.interval,
		TotalIntervals:     sched.totalIntervals,
		IntervalsCompleted: sched.intervalsCompleted,
		TotalSpent:         spent,
		TotalAcquired:      acquired,
		AveragePrice:       avg,
		Status:             sched.status,
		CreatedAt:          sched.createdAt,
		NextExecution:      sched.nextExecution,
	}
}
