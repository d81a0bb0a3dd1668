package pos

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func line(productID int64, name string, qty int, price string) LineItem {
	return LineItem{
		Ref:         NewPendingRef(),
		ProductID:   productID,
		ProductName: name,
		Qty:         qty,
		PriceAtSale: d(price),
	}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name           string
		items          []LineItem
		discount       string
		subtotal       string
		discountAmount string
		total          string
	}{
		{
			name:           "empty cart",
			items:          nil,
			discount:       "0",
			subtotal:       "0",
			discountAmount: "0",
			total:          "0",
		},
		{
			name: "two lines with discount",
			items: []LineItem{
				line(1, "Pad Thai", 2, "60"),
				line(2, "Tom Yum", 1, "150"),
			},
			discount:       "20",
			subtotal:       "270",
			discountAmount: "20",
			total:          "250",
		},
		{
			name:           "discount clamped to subtotal",
			items:          []LineItem{line(1, "Spring Rolls", 1, "45")},
			discount:       "100",
			subtotal:       "45",
			discountAmount: "45",
			total:          "0",
		},
		{
			name:           "negative discount treated as zero",
			items:          []LineItem{line(1, "Green Curry", 1, "95")},
			discount:       "-10",
			subtotal:       "95",
			discountAmount: "0",
			total:          "95",
		},
		{
			name:           "discount on empty cart",
			items:          nil,
			discount:       "50",
			subtotal:       "0",
			discountAmount: "0",
			total:          "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.items, d(tt.discount))
			if !got.Subtotal.Equal(d(tt.subtotal)) {
				t.Errorf("subtotal = %s, want %s", got.Subtotal, tt.subtotal)
			}
			if !got.DiscountAmount.Equal(d(tt.discountAmount)) {
				t.Errorf("discountAmount = %s, want %s", got.DiscountAmount, tt.discountAmount)
			}
			if !got.Total.Equal(d(tt.total)) {
				t.Errorf("total = %s, want %s", got.Total, tt.total)
			}
			if got.Total.IsNegative() {
				t.Error("total must never be negative")
			}
		})
	}
}

func TestComputeTotalsOrderIrrelevant(t *testing.T) {
	a := []LineItem{line(1, "A", 2, "60"), line(2, "B", 1, "150")}
	b := []LineItem{line(2, "B", 1, "150"), line(1, "A", 2, "60")}

	ta := ComputeTotals(a, d("20"))
	tb := ComputeTotals(b, d("20"))
	if !ta.Total.Equal(tb.Total) || !ta.Subtotal.Equal(tb.Subtotal) {
		t.Errorf("totals depend on item order: %+v vs %+v", ta, tb)
	}
}
