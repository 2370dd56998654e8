// Package market holds the fixed set of tradable instruments, their
// committed prices and their price history.
package market

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/store"
)

// Registry owns every instrument. Prices are only ever replaced through
// Commit, SetPrice and Reset, each of which persists before publishing.
type Registry struct {
	symbols     []string // catalog order
	instruments map[string]*domain.Instrument
	tags        map[string]string // upper-case tag → symbol

	mu         sync.RWMutex
	history    map[string][]domain.PricePoint
	historyMax int

	persist store.Persister
	logger  *zap.Logger
}

// NewRegistry creates instruments from a validated catalog, each priced at
// its baseline with a single history point.
func NewRegistry(catalog []Listing, historyMax int, p store.Persister, logger *zap.Logger) (*Registry, error) {
	if err := ValidateCatalog(catalog); err != nil {
		return nil, err
	}
	if historyMax < 1 {
		return nil, fmt.Errorf("history max must be >= 1, got %d", historyMax)
	}
	if p == nil {
		p = store.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		instruments: make(map[string]*domain.Instrument, len(catalog)),
		tags:        make(map[string]string),
		history:     make(map[string][]domain.PricePoint, len(catalog)),
		historyMax:  historyMax,
		persist:     p,
		logger:      logger.With(zap.String("component", "market")),
	}
	for _, l := range catalog {
		vol, _ := domain.ParseVolatility(l.Volatility)
		inst := domain.NewInstrument(l.Symbol, l.Name, vol, l.BaselinePrice)
		r.symbols = append(r.symbols, l.Symbol)
		r.instruments[l.Symbol] = inst
		r.history[l.Symbol] = []domain.PricePoint{{Timestamp: inst.State().UpdatedAt, Price: l.BaselinePrice}}
		for _, tag := range l.Tags {
			r.tags[strings.ToUpper(strings.TrimSpace(tag))] = l.Symbol
		}
	}
	return r, nil
}

// Get returns the instrument for symbol (case-insensitive).
func (r *Registry) Get(symbol string) (*domain.Instrument, error) {
	inst, ok := r.instruments[strings.ToUpper(symbol)]
	if !ok {
		return nil, domain.ErrInstrumentNotFound
	}
	return inst, nil
}

// List returns every instrument in catalog order.
func (r *Registry) List() []*domain.Instrument {
	out := make([]*domain.Instrument, 0, len(r.symbols))
	for _, s := range r.symbols {
		out = append(out, r.instruments[s])
	}
	return out
}

// Symbols returns every symbol in catalog order.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// SymbolForTag resolves a chat tag such as "STEAM" to its instrument.
// A bare symbol is its own tag.
func (r *Registry) SymbolForTag(tag string) (string, bool) {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if s, ok := r.tags[tag]; ok {
		return s, true
	}
	if _, ok := r.instruments[tag]; ok {
		return tag, true
	}
	return "", false
}

// Prices returns a snapshot of every current price.
func (r *Registry) Prices() map[string]int64 {
	out := make(map[string]int64, len(r.symbols))
	for _, s := range r.symbols {
		out[s] = r.instruments[s].Price()
	}
	return out
}

// Commit publishes a new state for symbol and appends it to the history.
// The durable write happens first; on failure nothing changes and the
// error wraps domain.ErrSystemicFailure.
func (r *Registry) Commit(symbol string, st domain.InstrumentState) error {
	inst, err := r.Get(symbol)
	if err != nil {
		return err
	}

	point := domain.PricePoint{Timestamp: st.UpdatedAt, Price: st.Price}
	if err := r.persist.AppendHistory(inst.Symbol, point); err != nil {
		return fmt.Errorf("append history for %s: %v: %w", inst.Symbol, err, domain.ErrSystemicFailure)
	}
	if err := r.persist.SaveInstrument(inst.Symbol, st); err != nil {
		return fmt.Errorf("save instrument %s: %v: %w", inst.Symbol, err, domain.ErrSystemicFailure)
	}

	inst.Commit(st)
	r.appendHistory(inst.Symbol, point)
	return nil
}

func (r *Registry) appendHistory(symbol string, p domain.PricePoint) {
	r.mu.Lock()
	h := append(r.history[symbol], p)
	var trimmed bool
	if len(h) > r.historyMax {
		h = append([]domain.PricePoint(nil), h[len(h)-r.historyMax:]...)
		trimmed = true
	}
	r.history[symbol] = h
	oldest := h[0].Timestamp
	r.mu.Unlock()

	if trimmed {
		if err := r.persist.TrimHistory(symbol, oldest); err != nil {
			r.logger.Warn("failed to trim persisted history", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

// History returns up to limit of the most recent points for symbol in
// chronological order. A limit <= 0 returns the whole history.
func (r *Registry) History(symbol string, limit int) ([]domain.PricePoint, error) {
	inst, err := r.Get(symbol)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.history[inst.Symbol]
	if limit > 0 && limit < len(h) {
		h = h[len(h)-limit:]
	}
	out := make([]domain.PricePoint, len(h))
	copy(out, h)
	return out, nil
}

// SetPrice overrides an instrument's price and clears its momentum.
func (r *Registry) SetPrice(symbol string, price int64, now time.Time) error {
	if price <= 0 {
		return domain.Invalid("price must be greater than 0")
	}
	inst, err := r.Get(symbol)
	if err != nil {
		return err
	}
	st := inst.State()
	st.Price = price
	st.Momentum = 0
	st.UpdatedAt = now
	return r.Commit(inst.Symbol, st)
}

// ResetInstrument returns one instrument to its baseline price with no
// momentum or activity.
func (r *Registry) ResetInstrument(symbol string, now time.Time) error {
	inst, err := r.Get(symbol)
	if err != nil {
		return err
	}
	return r.Commit(inst.Symbol, domain.InstrumentState{Price: inst.Baseline, UpdatedAt: now})
}

// Restore replaces an instrument's state and history with values read
// back from durable storage. It does not write through.
func (r *Registry) Restore(symbol string, st domain.InstrumentState, history []domain.PricePoint) error {
	inst, err := r.Get(symbol)
	if err != nil {
		return err
	}
	inst.Commit(st)
	if len(history) == 0 {
		return nil
	}
	if len(history) > r.historyMax {
		history = history[len(history)-r.historyMax:]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[inst.Symbol] = append([]domain.PricePoint(nil), history...)
	return nil
}
