package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// MaxAmount is the largest price, order total or charge accepted, in major
// units. Its cents fit in an int64 with room left for summing.
var MaxAmount = decimal.NewFromInt(1_000_000_000_000)

// Cents converts an amount to integer minor units, rounding half away from zero.
// Callers bound the amount with WithinMax first.
func Cents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// WithinMax reports whether d is not above MaxAmount.
func WithinMax(d decimal.Decimal) bool {
	return d.LessThanOrEqual(MaxAmount)
}
