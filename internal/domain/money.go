package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// SpursPerCog is the number of minor units (spurs) in one major unit (cog).
// All ledger and order arithmetic is done in spurs.
const SpursPerCog = 64

var spursPerCog = decimal.NewFromInt(SpursPerCog)

// SpursToCogs converts a spur amount to its exact decimal cog value.
// 1/64 has a finite decimal expansion, so the result is never rounded.
func SpursToCogs(spurs int64) decimal.Decimal {
	return decimal.NewFromInt(spurs).Div(spursPerCog)
}

// FormatCogs renders a spur amount as a cog string such as "31.25".
func FormatCogs(spurs int64) string {
	return SpursToCogs(spurs).String()
}

// CogsToSpurs parses a decimal cog amount and converts it to spurs.
// It rejects values that are not a whole number of spurs.
func CogsToSpurs(cogs string) (int64, error) {
	d, err := decimal.NewFromString(cogs)
	if err != nil {
		return 0, fmt.Errorf("invalid cog amount %q", cogs)
	}
	spurs := d.Mul(spursPerCog)
	if !spurs.Equal(spurs.Truncate(0)) {
		return 0, fmt.Errorf("cog amount %q is not a whole number of spurs", cogs)
	}
	if spurs.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || spurs.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("cog amount %q out of range", cogs)
	}
	return spurs.IntPart(), nil
}

// Notional returns quantity × unit price, or false when the product would
// overflow int64. Both arguments must be non-negative.
func Notional(quantity, unitPrice int64) (int64, bool) {
	if quantity < 0 || unitPrice < 0 {
		return 0, false
	}
	if quantity != 0 && unitPrice > math.MaxInt64/quantity {
		return 0, false
	}
	return quantity * unitPrice, true
}
