package pos

import (
	"context"
	"time"
)

// Reconciler keeps client views consistent with the store without polling.
// On every feed notification it performs a full authoritative refetch of the
// watched aggregate and replaces the consumer's state wholesale. There is no
// field-level merging of notifications into local optimistic edits; the last
// completed refetch always wins.
type Reconciler struct {
	feed  Feed
	store Store
}

// NewReconciler wires a reconciler against an explicit feed and store. The
// feed is injected, never ambient, so tests can fake it.
func NewReconciler(feed Feed, store Store) *Reconciler {
	return &Reconciler{feed: feed, store: store}
}

// WatchOpenOrders calls onReplace with the full open-order list now and again
// after every order change anywhere in the store. The returned func releases
// the subscription; callers must invoke it when they stop watching.
func (r *Reconciler) WatchOpenOrders(ctx context.Context, onReplace func([]Order)) func() {
	refetch := func() {
		orders, err := r.store.FetchOpenOrders(ctx)
		if err != nil {
			return
		}
		onReplace(orders)
	}
	cancel := r.feed.Watch("", refetch)
	refetch()
	return cancel
}

// WatchTable binds a session to the feed: any change to the table's order
// triggers a refetch that supersedes whatever optimistic view the session
// holds. Returns the unsubscribe func.
func (r *Reconciler) WatchTable(ctx context.Context, s *Session) func() {
	return r.feed.Watch(s.Table(), func() {
		order, ok, err := r.store.FetchOrderByTable(ctx, s.Table())
		if err != nil || !ok {
			return
		}
		s.adopt(order)
	})
}

// WatchRange feeds a reports-style consumer: completed orders in a fixed date
// range, refetched wholesale on every order change.
func (r *Reconciler) WatchRange(ctx context.Context, start, end time.Time, onReplace func([]Order)) func() {
	refetch := func() {
		orders, err := r.store.FetchOrdersInRange(ctx, start, end)
		if err != nil {
			return
		}
		onReplace(orders)
	}
	cancel := r.feed.Watch("", refetch)
	refetch()
	return cancel
}
