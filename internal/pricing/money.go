package pricing

import (
	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount in the store currency.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// Percent returns amount * pct / 100 without rounding.
func Percent(amount Money, pct int) Money {
	if pct <= 0 || amount.Sign() <= 0 {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(int64(pct))).Div(hundred)
}

// LineSubtotal multiplies the unit price by the quantity.
func LineSubtotal(unit Money, qty int) Money {
	if qty <= 0 {
		return decimal.Zero
	}
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// FormatUSD renders an amount as $x.xx.
func FormatUSD(m Money) string {
	return "$" + m.StringFixed(2)
}
