package market

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/store"
)

type recordingPersister struct {
	store.Nop
	mu        sync.Mutex
	saved     map[string]domain.InstrumentState
	appended  int
	trimmed   []time.Time
	failWrite bool
}

func newRecordingPersister() *recordingPersister {
	return &recordingPersister{saved: make(map[string]domain.InstrumentState)}
}

func (p *recordingPersister) SaveInstrument(symbol string, s domain.InstrumentState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWrite {
		return errors.New("disk full")
	}
	p.saved[symbol] = s
	return nil
}

func (p *recordingPersister) AppendHistory(string, domain.PricePoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appended++
	return nil
}

func (p *recordingPersister) TrimHistory(_ string, before time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trimmed = append(p.trimmed, before)
	return nil
}

func newTestRegistry(t *testing.T, historyMax int, p store.Persister) *Registry {
	t.Helper()
	r, err := NewRegistry(DefaultCatalog(), historyMax, p, nil)
	require.NoError(t, err)
	return r
}

func TestNewRegistry_StartsAtBaseline(t *testing.T) {
	r := newTestRegistry(t, 10, nil)

	inst, err := r.Get("stmp")
	require.NoError(t, err)
	assert.Equal(t, "STMP", inst.Symbol)
	assert.Equal(t, int64(2000), inst.Price())
	assert.Equal(t, domain.VolatilityMedium, inst.Volatility)

	hist, err := r.History("STMP", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, int64(2000), hist[0].Price)

	assert.Equal(t, []string{"STMP", "BRSS", "GEAR", "CLKW", "VALV"}, r.Symbols())
	assert.Len(t, r.List(), 5)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := newTestRegistry(t, 10, nil)

	_, err := r.Get("NOPE")
	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)

	_, err = r.History("NOPE", 1)
	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)
}

func TestRegistry_CommitPersistsThenPublishes(t *testing.T) {
	p := newRecordingPersister()
	r := newTestRegistry(t, 10, p)
	now := time.Now().UTC()

	require.NoError(t, r.Commit("STMP", domain.InstrumentState{Price: 2040, Momentum: 0.01, Activity: 50, UpdatedAt: now}))

	inst, _ := r.Get("STMP")
	assert.Equal(t, int64(2040), inst.Price())
	assert.Equal(t, int64(2040), p.saved["STMP"].Price)
	assert.Equal(t, 1, p.appended)

	hist, _ := r.History("STMP", 0)
	require.Len(t, hist, 2)
	assert.Equal(t, int64(2040), hist[1].Price)
}

func TestRegistry_CommitFailureLeavesPriceUnchanged(t *testing.T) {
	p := newRecordingPersister()
	p.failWrite = true
	r := newTestRegistry(t, 10, p)

	err := r.Commit("STMP", domain.InstrumentState{Price: 9999, UpdatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrSystemicFailure)

	inst, _ := r.Get("STMP")
	assert.Equal(t, int64(2000), inst.Price())
	hist, _ := r.History("STMP", 0)
	assert.Len(t, hist, 1)
}

func TestRegistry_HistoryIsCapped(t *testing.T) {
	p := newRecordingPersister()
	r := newTestRegistry(t, 3, p)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		require.NoError(t, r.Commit("GEAR", domain.InstrumentState{Price: int64(1000 + i), UpdatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	hist, err := r.History("GEAR", 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, int64(1003), hist[0].Price)
	assert.Equal(t, int64(1005), hist[2].Price)
	assert.Equal(t, base.Add(5*time.Minute), p.trimmed[len(p.trimmed)-1].Add(2*time.Minute))

	last2, _ := r.History("GEAR", 2)
	require.Len(t, last2, 2)
	assert.Equal(t, int64(1004), last2[0].Price)
}

func TestRegistry_SetPriceAndReset(t *testing.T) {
	r := newTestRegistry(t, 10, nil)
	now := time.Now()

	require.NoError(t, r.Commit("BRSS", domain.InstrumentState{Price: 3300, Momentum: 0.2, UpdatedAt: now}))
	require.NoError(t, r.SetPrice("BRSS", 4000, now))

	inst, _ := r.Get("BRSS")
	st := inst.State()
	assert.Equal(t, int64(4000), st.Price)
	assert.Zero(t, st.Momentum)

	assert.ErrorIs(t, r.SetPrice("BRSS", 0, now), domain.ErrInvalidOrder)
	assert.ErrorIs(t, r.SetPrice("NOPE", 10, now), domain.ErrInstrumentNotFound)

	require.NoError(t, r.ResetInstrument("brss", now))
	assert.Equal(t, int64(3200), inst.Price())
	assert.Zero(t, inst.State().Momentum)
	hist, _ := r.History("BRSS", 0)
	assert.Equal(t, int64(3200), hist[len(hist)-1].Price)
	assert.ErrorIs(t, r.ResetInstrument("NOPE", now), domain.ErrInstrumentNotFound)
}

func TestRegistry_TagsAndPrices(t *testing.T) {
	r := newTestRegistry(t, 10, nil)

	sym, ok := r.SymbolForTag(" steam ")
	assert.True(t, ok)
	assert.Equal(t, "STMP", sym)

	sym, ok = r.SymbolForTag("gear")
	assert.True(t, ok)
	assert.Equal(t, "GEAR", sym)

	_, ok = r.SymbolForTag("unknown")
	assert.False(t, ok)

	prices := r.Prices()
	assert.Equal(t, int64(960), prices["GEAR"])
}

func TestRegistry_Restore(t *testing.T) {
	r := newTestRegistry(t, 2, nil)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []domain.PricePoint{
		{Timestamp: base, Price: 1},
		{Timestamp: base.Add(time.Minute), Price: 2},
		{Timestamp: base.Add(2 * time.Minute), Price: 3},
	}

	require.NoError(t, r.Restore("VALV", domain.InstrumentState{Price: 3, Momentum: -0.1, UpdatedAt: base}, history))

	inst, _ := r.Get("VALV")
	assert.Equal(t, int64(3), inst.Price())
	hist, _ := r.History("VALV", 0)
	require.Len(t, hist, 2)
	assert.Equal(t, int64(2), hist[0].Price)
}
