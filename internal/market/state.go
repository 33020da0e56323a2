// Package market holds the engine's view of current prices: the latest tick
// plus a bounded rolling history per instrument.
package market

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

var ErrInvalidPrice = errors.New("price must be positive and finite")

const DefaultMaxHistory = 100

// Tick is a single observed price. Immutable once recorded.
type Tick struct {
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	At         time.Time `json:"at"`
}

// State is an engine-owned price table. Multiple engines each own their own
// State; there is no shared global.
type State struct {
	mu         sync.RWMutex
	maxHistory int
	latest     map[string]Tick
	history    map[string][]Tick
}

func NewState(maxHistory int) *State {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &State{
		maxHistory: maxHistory,
		latest:     make(map[string]Tick),
		history:    make(map[string][]Tick),
	}
}

// RecordTick validates and stores a price observation. History keeps the
// last maxHistory ticks per instrument, oldest evicted first.
func (s *State) RecordTick(instrument string, price float64, at time.Time) (Tick, error) {
	instrument = Normalize(instrument)
	if instrument == "" {
		return Tick{}, fmt.Errorf("record tick: instrument required")
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return Tick{}, fmt.Errorf("record tick %s: %w", instrument, ErrInvalidPrice)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	tick := Tick{Instrument: instrument, Price: price, At: at}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[instrument] = tick
	hist := append(s.history[instrument], tick)
	if over := len(hist) - s.maxHistory; over > 0 {
		hist = hist[over:]
	}
	s.history[instrument] = hist
	return tick, nil
}

// Latest returns the most recent tick for an instrument.
func (s *State) Latest(instrument string) (Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tick, ok := s.latest[Normalize(instrument)]
	return tick, ok
}

// LatestPrice returns the most recent price, or 0 when the instrument has
// never ticked.
func (s *State) LatestPrice(instrument string) float64 {
	tick, ok := s.Latest(instrument)
	if !ok {
		return 0
	}
	return tick.Price
}

// History returns up to window recent ticks, oldest first. window <= 0
// returns the full retained history.
func (s *State) History(instrument string, window int) []Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.history[Normalize(instrument)]
	if window > 0 && len(hist) > window {
		hist = hist[len(hist)-window:]
	}
	out := make([]Tick, len(hist))
	copy(out, hist)
	return out
}

// Normalize canonicalizes an instrument symbol.
func Normalize(instrument string) string {
	return strings.ToUpper(strings.TrimSpace(instrument))
}
