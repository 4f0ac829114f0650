package fidelity

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	one      = decimal.NewFromInt(1)
	tenCents = decimal.RequireFromString("0.10")
	centStep = decimal.RequireFromString("0.01")
	finestep = decimal.RequireFromString("0.0001")
)

// resolveOrderMode decides market vs. limit. Limit is forced for penny
// stocks (last < $1), whenever extended hours is active, and whenever the
// caller supplied an explicit limit price; everything else goes to market.
func resolveOrderMode(lastPrice decimal.Decimal, extended bool, explicit *decimal.Decimal) OrderMode {
	if lastPrice.LessThan(one) || extended || explicit != nil {
		return ModeLimit
	}
	return ModeMarket
}

// computeLimitPrice nudges the limit one increment through the spread so the
// order fills like a marketable limit: a cent above/below the last price, or
// a hundredth of a cent for sub-dime names. Rounded to the precision the
// ticket accepts (2 in extended hours, 3 otherwise).
func computeLimitPrice(lastPrice decimal.Decimal, side Side, precision int32) decimal.Decimal {
	step := centStep
	if !lastPrice.GreaterThan(tenCents) {
		step = finestep
	}
	if side == Buy {
		return lastPrice.Add(step).Round(precision)
	}
	return lastPrice.Sub(step).Round(precision)
}

// parsePrice converts a rendered price ("$1,234.56") to a decimal.
func parsePrice(text string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	return decimal.NewFromString(cleaned)
}
