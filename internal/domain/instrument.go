package domain

import (
	"fmt"
	"sync"
	"time"
)

// Volatility classifies how noisy an instrument's price process is.
type Volatility string

const (
	VolatilityLow    Volatility = "low"
	VolatilityMedium Volatility = "medium"
	VolatilityHigh   Volatility = "high"
)

// ParseVolatility validates a volatility class name.
func ParseVolatility(s string) (Volatility, error) {
	switch v := Volatility(s); v {
	case VolatilityLow, VolatilityMedium, VolatilityHigh:
		return v, nil
	}
	return "", fmt.Errorf("unknown volatility class %q, must be one of: low, medium, high", s)
}

// InstrumentState is the part of an instrument the tick cycle mutates.
type InstrumentState struct {
	Price     int64     `json:"price"`    // spurs
	Momentum  float64   `json:"momentum"` // decayed log-return carry
	Activity  int64     `json:"activity"` // score used by the last tick
	UpdatedAt time.Time `json:"updated_at"`
}

// Instrument is a tradable symbol. Its identity fields never change; its
// state is replaced wholesale under mu so readers see either the pre-tick
// or the post-tick value.
type Instrument struct {
	Symbol     string
	Name       string
	Volatility Volatility
	Baseline   int64 // mean-reversion anchor in spurs

	mu    sync.RWMutex
	state InstrumentState
}

// NewInstrument creates an instrument priced at its baseline.
func NewInstrument(symbol, name string, vol Volatility, baseline int64) *Instrument {
	return &Instrument{
		Symbol:     symbol,
		Name:       name,
		Volatility: vol,
		Baseline:   baseline,
		state: InstrumentState{
			Price:     baseline,
			UpdatedAt: time.Now().UTC(),
		},
	}
}

// State returns a consistent copy of the instrument's current state.
func (i *Instrument) State() InstrumentState {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Price returns the instrument's current quoted price.
func (i *Instrument) Price() int64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state.Price
}

// Commit replaces the instrument's state atomically.
func (i *Instrument) Commit(s InstrumentState) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = s
}

// PricePoint is one entry of an instrument's price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     int64     `json:"price"`
}
