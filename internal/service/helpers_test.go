package service

import (
	"testing"
	"time"

	"github.com/efreitasn/cogexchange/internal/activity"
	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/engine"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/market"
	"github.com/efreitasn/cogexchange/internal/pricing"
	"github.com/efreitasn/cogexchange/internal/scheduler"
	"github.com/efreitasn/cogexchange/internal/store"
)

const startingBalance = 100 * domain.SpursPerCog

// testEnv bundles every dependency the services need, wired the way
// main wires them but kept in memory.
type testEnv struct {
	accountStore *store.AccountStore
	orderStore   *store.OrderStore
	alertStore   *store.AlertStore
	fillStore    *store.FillStore
	webhookStore *store.WebhookStore
	ledger       *ledger.Ledger
	registry     *market.Registry
	matcher      *engine.Matcher
	expiry       *engine.ExpiryManager
	activity     *activity.Aggregator
	scheduler    *scheduler.Scheduler
	events       *eventLog

	accounts *AccountService
	trades   *TradeService
	orders   *OrderService
	alerts   *AlertService
	market   *MarketService
	admin    *AdminService
	webhooks *WebhookService
}

// eventLog records every published event.
type eventLog struct {
	events []domain.Event
}

func (l *eventLog) Publish(e domain.Event) { l.events = append(l.events, e) }

func (l *eventLog) kinds() []domain.EventKind {
	out := make([]domain.EventKind, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Kind)
	}
	return out
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, store.Nop{})
}

func newTestEnvWith(t *testing.T, p store.Persister) *testEnv {
	t.Helper()

	env := &testEnv{
		accountStore: store.NewAccountStore(),
		orderStore:   store.NewOrderStore(p),
		alertStore:   store.NewAlertStore(p),
		fillStore:    store.NewFillStore(),
		webhookStore: store.NewWebhookStore(),
		events:       &eventLog{},
	}
	env.ledger = ledger.New(env.accountStore, p)

	reg, err := market.NewRegistry(market.DefaultCatalog(), 32, p, nil)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	env.registry = reg

	env.matcher = engine.NewMatcher(engine.NewBookManager(), env.ledger, env.orderStore, env.alertStore, env.fillStore, env.events, nil)
	env.expiry = engine.NewExpiryManager(time.Second, env.matcher)
	env.activity = activity.New(reg.Symbols(), 0, 0.5)
	env.scheduler = scheduler.New(
		scheduler.Config{Period: time.Hour, ActivityTimeout: 50 * time.Millisecond, InstrumentDeadline: time.Second},
		reg,
		pricing.NewProcess(pricing.DefaultParams(), pricing.ZeroNoise{}),
		env.activity,
		env.matcher,
		env.events,
		nil,
		nil,
	)

	env.accounts = NewAccountService(env.ledger, reg, startingBalance, nil)
	env.trades = NewTradeService(env.ledger, reg, env.fillStore, nil)
	env.orders = NewOrderService(env.matcher, env.expiry, env.ledger, reg, env.orderStore, time.Hour, nil)
	env.alerts = NewAlertService(env.matcher, env.ledger, reg, env.alertStore)
	env.market = NewMarketService(reg, env.matcher, env.activity)
	env.admin = NewAdminService("secret", reg, env.matcher, env.scheduler, nil)
	env.webhooks = NewWebhookService(env.webhookStore, env.ledger)
	return env
}

// register opens an account with the starting balance.
func (env *testEnv) register(t *testing.T, id, team string) {
	t.Helper()
	if _, err := env.accounts.Register(RegisterAccountRequest{AccountID: id, Team: team}); err != nil {
		t.Fatalf("failed to register account %s: %v", id, err)
	}
}

// buy acquires quantity units at the current price.
func (env *testEnv) buy(t *testing.T, id, symbol string, quantity int64) {
	t.Helper()
	_, err := env.trades.Trade(TradeRequest{AccountID: id, Symbol: symbol, Side: domain.SideBuy, Quantity: quantity})
	if err != nil {
		t.Fatalf("failed to buy %d %s for %s: %v", quantity, symbol, id, err)
	}
}

func (env *testEnv) price(t *testing.T, symbol string) int64 {
	t.Helper()
	inst, err := env.registry.Get(symbol)
	if err != nil {
		t.Fatalf("instrument %s: %v", symbol, err)
	}
	return inst.Price()
}

func (env *testEnv) balance(t *testing.T, id string) *BalanceResponse {
	t.Helper()
	b, err := env.accounts.Balance(id)
	if err != nil {
		t.Fatalf("failed to get balance for %s: %v", id, err)
	}
	return b
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
