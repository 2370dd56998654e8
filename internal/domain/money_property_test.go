package domain

import (
	"testing"

	"pgregory.net/rapid"
)

// Spurs → cogs string → spurs must round-trip exactly.
func TestProperty_MonetaryRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		spurs := rapid.Int64Range(-1_000_000_000_000, 1_000_000_000_000).Draw(t, "spurs")

		cogs := FormatCogs(spurs)
		got, err := CogsToSpurs(cogs)
		if err != nil {
			t.Fatalf("CogsToSpurs(%q) returned error for value derived from %d spurs: %v", cogs, spurs, err)
		}
		if got != spurs {
			t.Fatalf("round-trip failed: spurs=%d → cogs=%s → spurs=%d", spurs, cogs, got)
		}
	})
}

func TestProperty_NotionalMatchesProduct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		qty := rapid.Int64Range(0, 1_000_000).Draw(t, "qty")
		price := rapid.Int64Range(0, 1_000_000).Draw(t, "price")

		got, ok := Notional(qty, price)
		if !ok {
			t.Fatalf("Notional(%d, %d) reported overflow", qty, price)
		}
		if got != qty*price {
			t.Fatalf("Notional(%d, %d) = %d, want %d", qty, price, got, qty*price)
		}
	})
}
