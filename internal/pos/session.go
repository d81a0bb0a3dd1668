package pos

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/patrick-wrks/gojack-samui-restaurant/internal/enum"
)

// Session is the optimistic mutation engine for one table's open order. Every
// mutation applies its effect to the in-memory snapshot immediately, then
// issues the remote call; on success the snapshot is replaced wholesale by an
// authoritative refetch, on failure it is restored to the exact pre-mutation
// state.
//
// The lock is never held across a remote call, so two rapid edits may be in
// flight at once. Each tracks its own before/optimistic pair; the remote side
// is last-applied-wins and the reconciler corrects any divergence.
type Session struct {
	store Store
	table string

	mu    sync.Mutex
	order Order
}

// OpenTable returns a session for the table's open order, creating the order
// when the table has none. The store resolves the get-or-create atomically,
// so two clients opening the same table converge on a single open order.
func OpenTable(ctx context.Context, store Store, table string) (*Session, error) {
	order, ok, err := store.FetchOrderByTable(ctx, table)
	if err != nil {
		return nil, storeErr("open table")
	}
	if !ok {
		order, err = store.CreateOrder(ctx, CreateOrderParams{
			TableNumber: table,
			Status:      enum.OrderStatusOpen,
		})
		if err != nil {
			return nil, storeErr("open table")
		}
	}
	return &Session{store: store, table: table, order: order}, nil
}

// Table returns the table number this session is editing.
func (s *Session) Table() string { return s.table }

// Snapshot returns a copy of the current order view for rendering.
func (s *Session) Snapshot() Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Clone()
}

// Totals derives the current figures from the snapshot.
func (s *Session) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.order.Items, s.order.Discount)
}

// AddLine adds qty of a product to the order. An existing line for the same
// product accumulates quantity instead of gaining a duplicate row; otherwise
// a new line appears under a temporary id until the store confirms it.
func (s *Session) AddLine(ctx context.Context, item NewItem) error {
	if item.Qty <= 0 {
		return ErrInvalidQty
	}

	s.mu.Lock()
	if err := s.guardOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	before := s.order.Clone()
	if i := s.lineByProduct(item.ProductID); i >= 0 {
		s.order.Items[i].Qty += item.Qty
	} else {
		s.order.Items = append(s.order.Items, LineItem{
			Ref:         NewPendingRef(),
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Qty:         item.Qty,
			PriceAtSale: item.PriceAtSale,
		})
	}
	s.recompute()
	orderID := s.order.ID
	s.mu.Unlock()

	if err := s.store.AddItems(ctx, orderID, []NewItem{item}); err != nil {
		s.restore(before)
		return storeErr("add item")
	}
	s.refresh(ctx)
	return nil
}

// ChangeQty sets a line's quantity. Zero or below removes the line. A line
// still pending confirmation is only updated locally; the remote call needs a
// server id and is a no-op until the id resolves.
func (s *Session) ChangeQty(ctx context.Context, ref LineRef, qty int) error {
	if qty <= 0 {
		return s.RemoveLine(ctx, ref)
	}

	s.mu.Lock()
	if err := s.guardOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	i := s.lineByRef(ref)
	if i < 0 {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	before := s.order.Clone()
	s.order.Items[i].Qty = qty
	s.recompute()
	s.mu.Unlock()

	id, ok := ref.ServerID()
	if !ok {
		return nil
	}
	if err := s.store.UpdateItemQty(ctx, id, qty); err != nil {
		s.restore(before)
		return storeErr("update quantity")
	}
	s.refresh(ctx)
	return nil
}

// RemoveLine deletes a line from the order.
func (s *Session) RemoveLine(ctx context.Context, ref LineRef) error {
	s.mu.Lock()
	if err := s.guardOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	i := s.lineByRef(ref)
	if i < 0 {
		s.mu.Unlock()
		return ErrLineNotFound
	}
	before := s.order.Clone()
	s.order.Items = append(s.order.Items[:i], s.order.Items[i+1:]...)
	s.recompute()
	s.mu.Unlock()

	id, ok := ref.ServerID()
	if !ok {
		return nil
	}
	if err := s.store.DeleteItem(ctx, id); err != nil {
		s.restore(before)
		return storeErr("remove item")
	}
	s.refresh(ctx)
	return nil
}

// ClearAll removes every line, issuing the per-line deletes in parallel. On
// partial failure the lines whose deletes succeeded stay removed; the view is
// resynchronized from the store and the error reported.
func (s *Session) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	if err := s.guardOpen(); err != nil {
		s.mu.Unlock()
		return err
	}
	persisted := make([]LineRef, 0, len(s.order.Items))
	for _, it := range s.order.Items {
		if !it.Ref.Pending() {
			persisted = append(persisted, it.Ref)
		}
	}
	s.order.Items = nil
	s.recompute()
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ref := range persisted {
		id, _ := ref.ServerID()
		g.Go(func() error {
			return s.store.DeleteItem(gctx, id)
		})
	}
	err := g.Wait()
	s.refresh(ctx)
	if err != nil {
		return storeErr("clear order")
	}
	return nil
}

// RequestBill completes the order: it freezes the payment method and the
// final total computed at this moment. An order with no items cannot be
// billed.
func (s *Session) RequestBill(ctx context.Context, paymentMethod string) error {
	s.mu.Lock()
	if err := checkTransition(s.order, enum.OrderStatusCompleted); err != nil {
		s.mu.Unlock()
		return err
	}
	before := s.order.Clone()
	final := ComputeTotals(s.order.Items, s.order.Discount).Total
	s.order.Status = enum.OrderStatusCompleted
	s.order.PaymentMethod = paymentMethod
	s.order.Total = final
	orderID := s.order.ID
	s.mu.Unlock()

	if err := s.store.CompleteOrder(ctx, orderID, paymentMethod, final); err != nil {
		s.restore(before)
		return storeErr("complete order")
	}
	return nil
}

// Cancel voids an empty open order, deleting its row. Cancelling an order
// that still has items is rejected before any remote call.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if err := checkTransition(s.order, enum.OrderStatusCancelled); err != nil {
		s.mu.Unlock()
		return err
	}
	before := s.order.Clone()
	s.order.Status = enum.OrderStatusCancelled
	orderID := s.order.ID
	s.mu.Unlock()

	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		s.restore(before)
		return storeErr("cancel order")
	}
	return nil
}

// adopt replaces the local view wholesale with an authoritative snapshot.
// Used by the reconciler; any optimistic guess in flight is superseded.
func (s *Session) adopt(o Order) {
	s.mu.Lock()
	s.order = o
	s.mu.Unlock()
}

// refresh refetches the table's order and replaces local state. A missing row
// (order completed or cancelled elsewhere) leaves the current view in place
// for the reconciler to settle.
func (s *Session) refresh(ctx context.Context) {
	order, ok, err := s.store.FetchOrderByTable(ctx, s.table)
	if err != nil || !ok {
		return
	}
	s.adopt(order)
}

func (s *Session) restore(before Order) {
	s.mu.Lock()
	s.order = before
	s.mu.Unlock()
}

// guardOpen rejects item mutations once the order left the open state.
// Callers hold s.mu.
func (s *Session) guardOpen() error {
	if s.order.Status != enum.OrderStatusOpen {
		return ErrOrderClosed
	}
	return nil
}

// recompute re-derives the stored total from the lines. Callers hold s.mu.
func (s *Session) recompute() {
	s.order.Total = ComputeTotals(s.order.Items, s.order.Discount).Total
}

func (s *Session) lineByProduct(productID int64) int {
	if productID == 0 {
		return -1
	}
	for i, it := range s.order.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Session) lineByRef(ref LineRef) int {
	for i, it := range s.order.Items {
		if it.Ref == ref {
			return i
		}
	}
	return -1
}

func storeErr(op string) error {
	return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
}
