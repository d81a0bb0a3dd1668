package pos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors surfaced to the UI layer by sessions and carts. These are display
// messages; backend failures are mapped onto them and never passed through raw.
var (
	ErrOrderClosed      = errors.New("order is already closed")
	ErrEmptyOrder       = errors.New("order has no items to bill")
	ErrCancelNonEmpty   = errors.New("remove all items before cancelling the order")
	ErrLineNotFound     = errors.New("line item no longer exists")
	ErrInvalidQty       = errors.New("quantity must be positive")
	ErrStoreUnavailable = errors.New("could not reach the order store")
)

// CreateOrderParams is the atomic order-with-items creation input.
type CreateOrderParams struct {
	TableNumber   string // empty for quick-sale orders
	Status        string // enum.OrderStatusOpen or enum.OrderStatusCompleted
	PaymentMethod string // set only when created directly completed
	Discount      decimal.Decimal
	Items         []NewItem
}

// Store is the persistence collaborator the sync engine runs against: a row
// store with atomic order creation, per-item mutations, and status
// transitions. Implemented by store.Postgres; faked in tests.
type Store interface {
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	FetchOpenOrders(ctx context.Context) ([]Order, error)
	FetchOrderByTable(ctx context.Context, table string) (Order, bool, error)
	FetchOrdersInRange(ctx context.Context, start, end time.Time) ([]Order, error)
	AddItems(ctx context.Context, orderID uuid.UUID, items []NewItem) error
	UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	CompleteOrder(ctx context.Context, orderID uuid.UUID, paymentMethod string, finalTotal decimal.Decimal) error
}

// Feed is the change-notification collaborator. Watch registers a callback
// fired on any insert/update/delete touching orders for the given table; an
// empty table watches every order. Notifications carry no payload, consumers
// always refetch. The returned func releases the subscription and is safe to
// call more than once.
type Feed interface {
	Watch(table string, onChange func()) (cancel func())
}
