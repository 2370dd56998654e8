package engine

import (
	"sync"
	"time"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/store"
)

// recordingSink collects published events.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Publish(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) kinds() []domain.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventKind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

// tb is the part of *testing.T and *rapid.T the helpers need.
type tb interface {
	Helper()
	Fatalf(format string, args ...any)
}

type testEnv struct {
	matcher  *Matcher
	ledger   *ledger.Ledger
	accounts *store.AccountStore
	orders   *store.OrderStore
	alerts   *store.AlertStore
	fills    *store.FillStore
	sink     *recordingSink
	clock    *time.Time
}

// newTestEnv creates a Matcher over fresh stores with a controllable clock.
func newTestEnv(t tb) *testEnv {
	t.Helper()
	accounts := store.NewAccountStore()
	l := ledger.New(accounts, nil)
	orders := store.NewOrderStore(nil)
	alerts := store.NewAlertStore(nil)
	fills := store.NewFillStore()
	sink := &recordingSink{}
	m := NewMatcher(NewBookManager(), l, orders, alerts, fills, sink, nil)

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	env := &testEnv{matcher: m, ledger: l, accounts: accounts, orders: orders, alerts: alerts, fills: fills, sink: sink, clock: &clock}
	m.now = func() time.Time {
		*env.clock = env.clock.Add(time.Millisecond)
		return *env.clock
	}
	return env
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func (e *testEnv) openAccount(t tb, id string, cash int64, holdings map[string]int64) {
	t.Helper()
	if _, err := e.ledger.Open(id, "", cash); err != nil {
		t.Fatalf("open %s: %v", id, err)
	}
	for sym, qty := range holdings {
		if err := e.ledger.TransferHolding(id, sym, qty); err != nil {
			t.Fatalf("seed holding: %v", err)
		}
	}
}

func (e *testEnv) account(t tb, id string) domain.AccountSnapshot {
	t.Helper()
	s, err := e.ledger.Snapshot(id)
	if err != nil {
		t.Fatalf("snapshot %s: %v", id, err)
	}
	return s
}

func limitOrder(accountID string, side domain.Side, symbol string, qty, limit int64) domain.ConditionalOrder {
	return domain.ConditionalOrder{
		AccountID:  accountID,
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		LimitPrice: limit,
	}
}
