// Package pricing contains the pure money arithmetic for carts and
// discounts. All amounts are int64 minor currency units (UZS has no
// subdivision, so one unit = one soum); there is no floating point
// anywhere in the calculation path.
package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is a single cart line with the unit price already resolved
// (effective price snapshot at calculation time).
type Line struct {
	ProductID int64
	UnitPrice int64
	Quantity  int
}

// Total returns the line total in minor units.
func (l Line) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Breakdown is the computed pricing result for a cart.
type Breakdown struct {
	Lines    []Line
	Subtotal int64
	Discount int64
	Total    int64
}

// Subtotal sums the line totals of the given cart lines.
func Subtotal(lines []Line) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.Total()
	}
	return sum
}

// PercentageDiscount computes a percentage discount on subtotal,
// rounding down to the nearest minor unit so the customer is never
// overcharged. Percent may be fractional (e.g. 12.5).
func PercentageDiscount(subtotal int64, percent decimal.Decimal) int64 {
	if subtotal <= 0 || !percent.IsPositive() {
		return 0
	}
	amount := decimal.NewFromInt(subtotal).Mul(percent).Div(hundred).Floor().IntPart()
	if amount > subtotal {
		return subtotal
	}
	return amount
}

// FixedDiscount caps a fixed-amount discount at the subtotal so the
// total can never go negative.
func FixedDiscount(subtotal, amount int64) int64 {
	if subtotal <= 0 || amount <= 0 {
		return 0
	}
	return min(amount, subtotal)
}

// Compute builds the full breakdown for a cart with an already-decided
// discount amount. The discount is clamped to [0, subtotal].
func Compute(lines []Line, discount int64) Breakdown {
	subtotal := Subtotal(lines)
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	return Breakdown{
		Lines:    lines,
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal - discount,
	}
}
