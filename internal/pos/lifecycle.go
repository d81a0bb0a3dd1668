package pos

import "github.com/patrick-wrks/gojack-samui-restaurant/internal/enum"

// validNext encodes the order lifecycle. Completed and cancelled are
// terminal; nothing leaves them.
var validNext = map[string]map[string]bool{
	enum.OrderStatusOpen: {
		enum.OrderStatusCompleted: true,
		enum.OrderStatusCancelled: true,
	},
	enum.OrderStatusCompleted: {},
	enum.OrderStatusCancelled: {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	return validNext[from][to]
}

// checkTransition validates a status change against both the lifecycle map
// and the item-count rules: billing requires at least one item, cancelling is
// only permitted while the order is empty. Violations are rejected before any
// remote call is made.
func checkTransition(o Order, to string) error {
	if !CanTransition(o.Status, to) {
		return ErrOrderClosed
	}
	switch to {
	case enum.OrderStatusCompleted:
		if o.ItemCount() == 0 {
			return ErrEmptyOrder
		}
	case enum.OrderStatusCancelled:
		if o.ItemCount() != 0 {
			return ErrCancelNonEmpty
		}
	}
	return nil
}
