package store

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/patrick-wrks/gojack-samui-restaurant/internal/pos"
)

func TestDecimalNumericRoundTrip(t *testing.T) {
	tests := []string{"0.00", "60.00", "120.50", "9999999999.99"}
	for _, tt := range tests {
		d, err := decimal.NewFromString(tt)
		if err != nil {
			t.Fatalf("parse %q: %v", tt, err)
		}
		got := numericToDecimal(decimalToNumeric(d))
		if !got.Equal(d) {
			t.Errorf("round trip %s = %s", tt, got)
		}
	}
}

func TestNumericToDecimalInvalid(t *testing.T) {
	got := numericToDecimal(pgtype.Numeric{})
	if !got.IsZero() {
		t.Errorf("invalid numeric = %s, want 0", got)
	}
}

func TestNumericToDecimalNaN(t *testing.T) {
	n := pgtype.Numeric{Int: big.NewInt(0), NaN: true, Valid: true}
	got := numericToDecimal(n)
	if !got.IsZero() {
		t.Errorf("NaN numeric = %s, want 0", got)
	}
}

func TestIsOrderNumberConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "order number unique violation",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"},
			want: true,
		},
		{
			name: "wrapped violation",
			err:  fmt.Errorf("insert order: %w", &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}),
			want: true,
		},
		{
			name: "different constraint",
			err:  &pgconn.PgError{Code: "23505", ConstraintName: "orders_open_table_key"},
			want: false,
		},
		{
			name: "different code",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "orders_order_number_key"},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isOrderNumberConflict(tt.err); got != tt.want {
				t.Errorf("isOrderNumberConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTableOccupied(t *testing.T) {
	occupied := fmt.Errorf("insert order: %w",
		&pgconn.PgError{Code: "23505", ConstraintName: "orders_open_table_key"})
	if !isTableOccupied(occupied) {
		t.Error("isTableOccupied() = false for open-table index violation")
	}
	if isTableOccupied(&pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}) {
		t.Error("isTableOccupied() = true for order number violation")
	}
	if isTableOccupied(errors.New("timeout")) {
		t.Error("isTableOccupied() = true for plain error")
	}
}

func TestNewItemLines(t *testing.T) {
	price := decimal.NewFromInt(60)
	items := []pos.NewItem{
		{ProductID: 1, ProductName: "Pad Thai", Qty: 2, PriceAtSale: price},
		{ProductID: 0, ProductName: "Daily Special", Qty: 1, PriceAtSale: decimal.NewFromInt(90)},
	}

	lines := newItemLines(items)

	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if lines[0].ProductName != "Pad Thai" || lines[0].Qty != 2 || !lines[0].PriceAtSale.Equal(price) {
		t.Errorf("lines[0] = %+v", lines[0])
	}
	sub := pos.ComputeTotals(lines, decimal.Zero)
	if !sub.Total.Equal(decimal.NewFromInt(210)) {
		t.Errorf("total = %s, want 210", sub.Total)
	}
}
