package pos

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/patrick-wrks/gojack-samui-restaurant/internal/enum"
)

// Cart is the pre-checkout quick-sale cart. It lives only in the acting
// client's memory, so lines are identified by product id, never by a server
// row id. Checkout persists the whole cart as one atomic
// create-order-with-items call; there is no optimistic phase because there is
// nothing to roll back to except the cart itself, which is left untouched on
// failure.
type Cart struct {
	store Store

	mu       sync.Mutex
	items    []LineItem
	discount decimal.Decimal
}

// NewCart returns an empty cart that will check out against the given store.
func NewCart(store Store) *Cart {
	return &Cart{store: store}
}

// AddItem accumulates qty onto an existing line for the product, or appends a
// new line.
func (c *Cart) AddItem(item NewItem) error {
	if item.Qty <= 0 {
		return ErrInvalidQty
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ProductID == item.ProductID {
			c.items[i].Qty += item.Qty
			return nil
		}
	}
	c.items = append(c.items, LineItem{
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Qty:         item.Qty,
		PriceAtSale: item.PriceAtSale,
	})
	return nil
}

// SetQty sets the quantity of a product's line. Zero or below removes it.
func (c *Cart) SetQty(productID int64, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ProductID == productID {
			if qty <= 0 {
				c.items = append(c.items[:i], c.items[i+1:]...)
			} else {
				c.items[i].Qty = qty
			}
			return nil
		}
	}
	return ErrLineNotFound
}

// Remove deletes a product's line from the cart.
func (c *Cart) Remove(productID int64) error {
	return c.SetQty(productID, 0)
}

// SetDiscount sets the flat discount applied at checkout. Negative values are
// treated as zero when totals are derived.
func (c *Cart) SetDiscount(d decimal.Decimal) {
	c.mu.Lock()
	c.discount = d
	c.mu.Unlock()
}

// Clear empties the cart and resets the discount.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.items = nil
	c.discount = decimal.Zero
	c.mu.Unlock()
}

// Items returns a copy of the current lines.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Totals derives the current cart figures.
func (c *Cart) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ComputeTotals(c.items, c.discount)
}

// Checkout creates the order directly in the completed state with the cart's
// items in a single atomic call, then empties the cart. On failure the cart
// is unchanged and the user simply retries.
func (c *Cart) Checkout(ctx context.Context, paymentMethod string) (Order, error) {
	c.mu.Lock()
	if len(c.items) == 0 {
		c.mu.Unlock()
		return Order{}, ErrEmptyOrder
	}
	items := make([]NewItem, len(c.items))
	for i, it := range c.items {
		items[i] = NewItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Qty:         it.Qty,
			PriceAtSale: it.PriceAtSale,
		}
	}
	discount := c.discount
	c.mu.Unlock()

	order, err := c.store.CreateOrder(ctx, CreateOrderParams{
		Status:        enum.OrderStatusCompleted,
		PaymentMethod: paymentMethod,
		Discount:      discount,
		Items:         items,
	})
	if err != nil {
		return Order{}, storeErr("checkout")
	}
	c.Clear()
	return order, nil
}
