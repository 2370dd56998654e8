package engine

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/efreitasn/cogexchange/internal/domain"
)

var propAccounts = []string{"a", "b", "c"}

// Property 1: reservation correctness. After any interleaving of
// placements, cancellations and evaluations, each account's reserved cash
// equals the sum of its pending buy orders and never exceeds its cash, and
// its reserved quantity equals its pending sell orders and never exceeds
// its holding.
func TestProperty_ReservationsMatchPendingOrders(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		env := newTestEnv(rt)
		for _, id := range propAccounts {
			env.openAccount(rt, id, rapid.Int64Range(0, 2000).Draw(rt, "cash"), map[string]int64{
				"STMP": rapid.Int64Range(0, 20).Draw(rt, "stmp"),
			})
		}

		var placed []string
		price := int64(100)
		steps := rapid.IntRange(1, 50).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				req := limitOrder(
					rapid.SampledFrom(propAccounts).Draw(rt, "account"),
					rapid.SampledFrom([]domain.Side{domain.SideBuy, domain.SideSell}).Draw(rt, "side"),
					"STMP",
					rapid.Int64Range(1, 10).Draw(rt, "qty"),
					rapid.Int64Range(50, 150).Draw(rt, "limit"),
				)
				if o, err := env.matcher.PlaceLimitOrder(req); err == nil {
					placed = append(placed, o.OrderID)
				}
			case 1:
				if len(placed) > 0 {
					id := rapid.SampledFrom(placed).Draw(rt, "cancel")
					_, _ = env.matcher.CancelOrder(id)
				}
			case 2:
				next := rapid.Int64Range(40, 160).Draw(rt, "price")
				res, err := env.matcher.Evaluate("STMP", price, next)
				if err != nil {
					rt.Fatalf("evaluate: %v", err)
				}
				if len(res.Failed) != 0 {
					rt.Fatalf("reserved order failed: %+v", res.Failed)
				}
				for _, f := range res.Fills {
					if f.Price != next {
						rt.Fatalf("fill at %d, quoted %d", f.Price, next)
					}
				}
				price = next
			}
			assertReservationsMatch(rt, env)
		}
	})
}

func assertReservationsMatch(t tb, env *testEnv) {
	t.Helper()
	pending := domain.OrderStatusPending
	for _, id := range propAccounts {
		s, _ := env.ledger.Snapshot(id)
		orders, _ := env.orders.ListByAccount(id, &pending, 1, 1<<20)

		var cash, qty int64
		for _, o := range orders {
			if o.Side == domain.SideBuy {
				cash += o.Quantity * o.LimitPrice
			} else {
				qty += o.Quantity
			}
		}
		h := s.Holdings["STMP"]
		if s.ReservedCash != cash || s.ReservedCash > s.Cash || s.Cash < 0 {
			t.Fatalf("%s: cash=%d reserved=%d pending buys=%d", id, s.Cash, s.ReservedCash, cash)
		}
		if h.ReservedQuantity != qty || h.ReservedQuantity > h.Quantity || h.Quantity < 0 {
			t.Fatalf("%s: qty=%d reserved=%d pending sells=%d", id, h.Quantity, h.ReservedQuantity, qty)
		}
	}
}

// Property 2: alert idempotence. Along any price path an alert fires at
// most once, and it fires exactly when some step crossed its threshold in
// its direction.
func TestProperty_AlertsFireAtMostOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		env := newTestEnv(rt)

		threshold := rapid.Int64Range(90, 110).Draw(rt, "threshold")
		dir := rapid.SampledFrom([]domain.Direction{domain.DirectionAbove, domain.DirectionBelow}).Draw(rt, "direction")
		a, err := env.matcher.CreateAlert(domain.PriceAlert{AccountID: "a", Symbol: "STMP", Threshold: threshold, Direction: dir})
		if err != nil {
			rt.Fatalf("create: %v", err)
		}

		path := rapid.SliceOfN(rapid.Int64Range(80, 120), 1, 40).Draw(rt, "path")
		prev := int64(100)
		fired, crossed := 0, false
		for _, next := range path {
			if a.Crossed(prev, next) {
				crossed = true
			}
			res, err := env.matcher.Evaluate("STMP", prev, next)
			if err != nil {
				rt.Fatalf("evaluate: %v", err)
			}
			fired += len(res.Fired)
			if len(res.Fired) == 1 && !a.Crossed(prev, next) {
				rt.Fatalf("fired on %d→%d without crossing %s %d", prev, next, dir, threshold)
			}
			prev = next
		}

		if fired > 1 {
			rt.Fatalf("alert fired %d times", fired)
		}
		if crossed != (fired == 1) {
			rt.Fatalf("crossed=%v but fired=%d", crossed, fired)
		}
	})
}
