package pos

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineRef identifies a line item. A line is either Persisted (the server has
// assigned its row id) or Pending (only a client-generated temporary id
// exists, the insert has not been confirmed yet). Mutations that require a
// server id must not be issued for Pending refs.
type LineRef struct {
	id      uuid.UUID
	pending bool
}

// PersistedRef wraps a server-assigned row id.
func PersistedRef(id uuid.UUID) LineRef {
	return LineRef{id: id}
}

// NewPendingRef allocates a temporary client-side id for a line that has not
// been confirmed by the store.
func NewPendingRef() LineRef {
	return LineRef{id: uuid.New(), pending: true}
}

// ServerID returns the row id and true when the line is persisted.
func (r LineRef) ServerID() (uuid.UUID, bool) {
	if r.pending {
		return uuid.UUID{}, false
	}
	return r.id, true
}

// Pending reports whether the line still awaits server confirmation.
func (r LineRef) Pending() bool { return r.pending }

func (r LineRef) String() string { return r.id.String() }

// LineItem is one product-and-quantity entry within an order. ProductName and
// PriceAtSale are captured when the line is added and never track later
// catalog edits. ProductID may be zero for historical lines whose product was
// deleted from the catalog.
type LineItem struct {
	Ref         LineRef
	ProductID   int64
	ProductName string
	Qty         int
	PriceAtSale decimal.Decimal
}

// Order is a client-side snapshot of one order row and its line items.
type Order struct {
	ID            uuid.UUID
	OrderNumber   int64
	Status        string
	TableNumber   string // empty for quick-sale orders
	PaymentMethod string // empty until completion
	Discount      decimal.Decimal
	Total         decimal.Decimal
	CreatedAt     time.Time
	Items         []LineItem
}

// Clone deep-copies the order so a caller can hold a snapshot that later
// mutations cannot touch.
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]LineItem, len(o.Items))
		copy(out.Items, o.Items)
	}
	return out
}

// ItemCount is the total quantity across all lines.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Qty
	}
	return n
}

// NewItem is the input shape for adding a line to an order or cart.
type NewItem struct {
	ProductID   int64
	ProductName string
	Qty         int
	PriceAtSale decimal.Decimal
}
