package service

import (
	"errors"
	"testing"
	"time"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/store"
)

func TestAuthorize(t *testing.T) {
	env := newTestEnv(t)

	if err := env.admin.Authorize("secret"); err != nil {
		t.Errorf("expected valid token to pass, got %v", err)
	}
	if err := env.admin.Authorize("guess"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	disabled := NewAdminService("", env.registry, env.matcher, env.scheduler, nil)
	if err := disabled.Authorize(""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected an empty token to disable admin, got %v", err)
	}
}

func TestSetPrice_FillsEligibleOrders(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "seller", "")
	env.buy(t, "seller", "CLKW", 1)

	order, err := env.orders.PlaceOrder(PlaceOrderRequest{
		AccountID: "seller", Symbol: "CLKW", Side: domain.SideSell, Quantity: 1, LimitPrice: 1700,
	})
	if err != nil {
		t.Fatalf("failed to place order: %v", err)
	}

	st, err := env.admin.SetPrice("clkw", 1800)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Price != 1800 || st.Momentum != 0 {
		t.Errorf("expected price 1800 with no momentum, got %+v", st)
	}

	got, _ := env.orders.GetOrder(order.OrderID)
	if got.Status != domain.OrderStatusFilled || got.FillPrice != 1800 {
		t.Errorf("expected filled at 1800, got %s at %d", got.Status, got.FillPrice)
	}
	if b := env.balance(t, "seller"); b.Cash != startingBalance-1600+1800 {
		t.Errorf("expected cash %d, got %d", startingBalance-1600+1800, b.Cash)
	}
}

func TestSetPrice_Errors(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.admin.SetPrice("NOPE", 100); !errors.Is(err, domain.ErrInstrumentNotFound) {
		t.Errorf("expected ErrInstrumentNotFound, got %v", err)
	}
	if _, err := env.admin.SetPrice("GEAR", 0); !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("expected validation error, got %v", err)
	}
	if got := env.price(t, "GEAR"); got != 960 {
		t.Errorf("expected GEAR unchanged at 960, got %d", got)
	}
}

func TestResetMarket(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "")

	alert, err := env.alerts.CreateAlert(CreateAlertRequest{
		AccountID: "alice", Symbol: "VALV", Direction: domain.DirectionBelow, Threshold: 1300,
	})
	if err != nil {
		t.Fatalf("failed to create alert: %v", err)
	}
	if _, err := env.admin.SetPrice("VALV", 1500); err != nil {
		t.Fatalf("failed to set price: %v", err)
	}
	if _, err := env.admin.SetPrice("STMP", 2500); err != nil {
		t.Fatalf("failed to set price: %v", err)
	}

	if err := env.admin.ResetMarket(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, inst := range env.registry.List() {
		if inst.Price() != inst.Baseline {
			t.Errorf("expected %s at baseline %d, got %d", inst.Symbol, inst.Baseline, inst.Price())
		}
	}

	// 1500 → 1280 crosses the 1300 threshold.
	got, _ := env.alerts.GetAlert(alert.AlertID)
	if got.Status != domain.AlertStatusFired {
		t.Errorf("expected the reset to fire the alert, got %s", got.Status)
	}
}

// historyOutage fails price history writes for one symbol once armed.
type historyOutage struct {
	store.Nop
	symbol string
	armed  bool
}

func (p *historyOutage) AppendHistory(symbol string, _ domain.PricePoint) error {
	if p.armed && symbol == p.symbol {
		return errors.New("disk full")
	}
	return nil
}

func TestResetMarket_PartialFailureResolvesResetInstruments(t *testing.T) {
	p := &historyOutage{symbol: "VALV"}
	env := newTestEnvWith(t, p)
	env.register(t, "alice", "")

	// STMP resets before VALV in catalog order.
	alert, err := env.alerts.CreateAlert(CreateAlertRequest{
		AccountID: "alice", Symbol: "STMP", Direction: domain.DirectionBelow, Threshold: 2200,
	})
	if err != nil {
		t.Fatalf("failed to create alert: %v", err)
	}
	if _, err := env.admin.SetPrice("STMP", 2500); err != nil {
		t.Fatalf("failed to set price: %v", err)
	}
	if _, err := env.admin.SetPrice("VALV", 1500); err != nil {
		t.Fatalf("failed to set price: %v", err)
	}

	p.armed = true
	if err := env.admin.ResetMarket(); !errors.Is(err, domain.ErrSystemicFailure) {
		t.Fatalf("expected a systemic failure, got %v", err)
	}

	if got := env.price(t, "STMP"); got != 2000 {
		t.Errorf("expected STMP back at 2000, got %d", got)
	}
	if got := env.price(t, "VALV"); got != 1500 {
		t.Errorf("expected VALV left at 1500, got %d", got)
	}
	// 2500 → 2000 crosses the 2200 threshold.
	got, _ := env.alerts.GetAlert(alert.AlertID)
	if got.Status != domain.AlertStatusFired {
		t.Errorf("expected the STMP reset to fire the alert, got %s", got.Status)
	}
}

func TestSetTickPeriod(t *testing.T) {
	env := newTestEnv(t)

	if err := env.admin.SetTickPeriod(30 * time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := env.admin.TickPeriod(); got != 30*time.Second {
		t.Errorf("expected 30s, got %s", got)
	}
	if err := env.admin.SetTickPeriod(500 * time.Millisecond); !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("expected validation error, got %v", err)
	}
}
