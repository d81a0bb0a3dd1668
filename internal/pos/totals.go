package pos

import "github.com/shopspring/decimal"

// Totals are the derived figures for an item list plus a discount.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// ComputeTotals derives subtotal, clamped discount, and total from scratch.
// It is recomputed from the current item list on every call instead of being
// maintained incrementally, so the figures cannot drift from the lines.
func ComputeTotals(items []LineItem, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.PriceAtSale.Mul(decimal.NewFromInt(int64(it.Qty))))
	}

	// Discount can never invert the total below zero.
	discountAmount := discount
	if discountAmount.IsNegative() {
		discountAmount = decimal.Zero
	}
	if discountAmount.GreaterThan(subtotal) {
		discountAmount = subtotal
	}

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		Total:          subtotal.Sub(discountAmount),
	}
}
