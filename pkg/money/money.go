// Package money holds the fixed-point arithmetic shared by pricing, carts and
// checkout. All amounts carry two decimal places and are non-negative.
package money

import "github.com/shopspring/decimal"

const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds to two decimals, halves away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// ApplyDiscount returns price reduced by percent (0-100), rounded.
// A non-positive percent leaves the price untouched.
func ApplyDiscount(price, percent decimal.Decimal) decimal.Decimal {
	if !percent.IsPositive() {
		return price
	}
	factor := decimal.NewFromInt(1).Sub(percent.Div(hundred))
	return Round(price.Mul(factor))
}

// LineTotal is unit × quantity.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// Tax computes round(subtotal × rate, 2).
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Mul(rate))
}
