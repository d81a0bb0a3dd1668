// Package store implements the order persistence contract on PostgreSQL.
//
// The two allocation races the engine inherits from its row-store heritage
// are closed here at the storage boundary: order numbers are assigned inside
// the creation transaction and retried on unique-constraint conflicts, and
// table occupancy is a partial unique index so get-or-create of a table's
// open order is atomic.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/patrick-wrks/gojack-samui-restaurant/internal/enum"
	"github.com/patrick-wrks/gojack-samui-restaurant/internal/pos"
)

const maxOrderNumberRetries = 3

// Errors returned by the store.
var (
	ErrOrderNotFound = errors.New("order not found")
	ErrItemNotFound  = errors.New("order item not found")
	ErrOrderClosed   = errors.New("order is not open")
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres implements pos.Store against a pgx pool.
type Postgres struct {
	db DB
}

// New creates a Postgres store.
func New(db DB) *Postgres {
	return &Postgres{db: db}
}

// Schema is applied at startup. The partial unique index enforces at most one
// open order per table; the per-product index lets item adds accumulate onto
// an existing line at the same sale price.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id             uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	order_number   bigint NOT NULL,
	status         text NOT NULL CHECK (status IN ('open', 'completed', 'cancelled')),
	table_number   text,
	payment_method text,
	discount       numeric(12,2) NOT NULL DEFAULT 0,
	total          numeric(12,2) NOT NULL DEFAULT 0,
	created_at     timestamptz NOT NULL DEFAULT now(),
	CONSTRAINT orders_order_number_key UNIQUE (order_number)
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_open_table_key
	ON orders (table_number) WHERE status = 'open' AND table_number IS NOT NULL;

CREATE TABLE IF NOT EXISTS order_items (
	id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	order_id      uuid NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	product_id    bigint NOT NULL DEFAULT 0,
	product_name  text NOT NULL,
	qty           integer NOT NULL CHECK (qty > 0),
	price_at_sale numeric(12,2) NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS order_items_order_product_key
	ON order_items (order_id, product_id, price_at_sale) WHERE product_id <> 0;
`

// EnsureSchema creates the tables and indexes when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateOrder creates an order with its items atomically. For an open table
// order whose table already has one, the existing open order is returned
// instead of a duplicate (the partial unique index turns check-then-create
// into a single atomic operation). Retries on order-number conflicts where
// concurrent transactions computed the same MAX.
func (s *Postgres) CreateOrder(ctx context.Context, arg pos.CreateOrderParams) (pos.Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		order, err := s.createOrderTx(ctx, arg)
		if err == nil {
			return order, nil
		}
		if isTableOccupied(err) && arg.Status == enum.OrderStatusOpen {
			existing, ok, ferr := s.FetchOrderByTable(ctx, arg.TableNumber)
			if ferr == nil && ok {
				return existing, nil
			}
			lastErr = err
			continue
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return pos.Order{}, err
	}
	return pos.Order{}, lastErr
}

func (s *Postgres) createOrderTx(ctx context.Context, arg pos.CreateOrderParams) (pos.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return pos.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var nextNum int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders`,
	).Scan(&nextNum)
	if err != nil {
		return pos.Order{}, fmt.Errorf("next order number: %w", err)
	}

	table := pgtype.Text{}
	if arg.TableNumber != "" {
		table = pgtype.Text{String: arg.TableNumber, Valid: true}
	}
	payment := pgtype.Text{}
	if arg.PaymentMethod != "" {
		payment = pgtype.Text{String: arg.PaymentMethod, Valid: true}
	}

	total := pos.ComputeTotals(newItemLines(arg.Items), arg.Discount).Total

	var orderID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, status, table_number, payment_method, discount, total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		nextNum, arg.Status, table, payment,
		decimalToNumeric(arg.Discount), decimalToNumeric(total),
	).Scan(&orderID)
	if err != nil {
		return pos.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i, item := range arg.Items {
		if err := insertItem(ctx, tx, orderID, item); err != nil {
			return pos.Order{}, fmt.Errorf("item[%d]: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return pos.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return s.fetchOrderByID(ctx, orderID)
}

// FetchOpenOrders returns every open order with its items, ordered by table.
func (s *Postgres) FetchOpenOrders(ctx context.Context) ([]pos.Order, error) {
	return s.fetchOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY table_number`,
		enum.OrderStatusOpen)
}

// FetchOrderByTable returns the table's open order, or ok=false when the
// table is free.
func (s *Postgres) FetchOrderByTable(ctx context.Context, table string) (pos.Order, bool, error) {
	orders, err := s.fetchOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 AND table_number = $2`,
		enum.OrderStatusOpen, table)
	if err != nil {
		return pos.Order{}, false, err
	}
	if len(orders) == 0 {
		return pos.Order{}, false, nil
	}
	return orders[0], true, nil
}

// FetchOrdersInRange returns completed orders created inside [start, end],
// newest first. This is the reports aggregate.
func (s *Postgres) FetchOrdersInRange(ctx context.Context, start, end time.Time) ([]pos.Order, error) {
	return s.fetchOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = $1 AND created_at >= $2 AND created_at <= $3
		 ORDER BY created_at DESC`,
		enum.OrderStatusCompleted, start, end)
}

// AddItems appends items to an open order, accumulating quantity onto an
// existing line for the same product at the same sale price, then recomputes
// the stored total.
func (s *Postgres) AddItems(ctx context.Context, orderID uuid.UUID, items []pos.NewItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.requireOpen(ctx, orderID); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i, item := range items {
		if err := insertItem(ctx, tx, orderID, item); err != nil {
			return fmt.Errorf("item[%d]: %w", i, err)
		}
	}
	if err := recomputeTotal(ctx, tx, orderID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdateItemQty sets a line's quantity; zero or below deletes the line.
func (s *Postgres) UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return s.DeleteItem(ctx, itemID)
	}
	return s.mutateItem(ctx, itemID, `
		UPDATE order_items SET qty = $2
		FROM orders o
		WHERE order_items.id = $1 AND o.id = order_items.order_id AND o.status = 'open'`,
		itemID, qty)
}

// DeleteItem removes a line from an open order.
func (s *Postgres) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return s.mutateItem(ctx, itemID, `
		DELETE FROM order_items
		USING orders o
		WHERE order_items.id = $1 AND o.id = order_items.order_id AND o.status = 'open'`,
		itemID)
}

// mutateItem runs an item mutation guarded on the parent order being open,
// recomputing the order total afterwards. Zero rows affected is resolved to
// the precise error: item gone vs order already closed.
func (s *Postgres) mutateItem(ctx context.Context, itemID uuid.UUID, sql string, args ...any) error {
	var orderID uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT order_id FROM order_items WHERE id = $1`, itemID,
	).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("find item: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mutate item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderClosed
	}
	if err := recomputeTotal(ctx, tx, orderID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DeleteOrder removes an open order and, by cascade, its items. Used for
// voiding an empty order.
func (s *Postgres) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM orders WHERE id = $1 AND status = 'open'`, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.resolveMissing(ctx, orderID)
	}
	return nil
}

// CompleteOrder transitions an open order to completed, freezing the payment
// method and the final total.
func (s *Postgres) CompleteOrder(ctx context.Context, orderID uuid.UUID, paymentMethod string, finalTotal decimal.Decimal) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders SET status = $2, payment_method = $3, total = $4
		WHERE id = $1 AND status = 'open'`,
		orderID, enum.OrderStatusCompleted, paymentMethod, decimalToNumeric(finalTotal))
	if err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.resolveMissing(ctx, orderID)
	}
	return nil
}

// TableForOrder returns the order's table number (empty for quick sales).
// Used to route change broadcasts to the right room.
func (s *Postgres) TableForOrder(ctx context.Context, orderID uuid.UUID) (string, error) {
	var table pgtype.Text
	err := s.db.QueryRow(ctx,
		`SELECT table_number FROM orders WHERE id = $1`, orderID,
	).Scan(&table)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("table for order: %w", err)
	}
	return table.String, nil
}

// TableForItem returns the table number of the line's parent order.
func (s *Postgres) TableForItem(ctx context.Context, itemID uuid.UUID) (string, error) {
	var table pgtype.Text
	err := s.db.QueryRow(ctx, `
		SELECT o.table_number FROM orders o
		JOIN order_items i ON i.order_id = o.id
		WHERE i.id = $1`, itemID,
	).Scan(&table)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrItemNotFound
	}
	if err != nil {
		return "", fmt.Errorf("table for item: %w", err)
	}
	return table.String, nil
}

// --- Internals ---

const orderColumns = `id, order_number, status, table_number, payment_method, discount, total, created_at`

func (s *Postgres) fetchOrders(ctx context.Context, sql string, args ...any) ([]pos.Order, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []pos.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}

	for i := range orders {
		items, err := s.fetchItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (s *Postgres) fetchOrderByID(ctx context.Context, orderID uuid.UUID) (pos.Order, error) {
	orders, err := s.fetchOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return pos.Order{}, err
	}
	if len(orders) == 0 {
		return pos.Order{}, ErrOrderNotFound
	}
	return orders[0], nil
}

func (s *Postgres) fetchItems(ctx context.Context, orderID uuid.UUID) ([]pos.LineItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, product_id, product_name, qty, price_at_sale
		FROM order_items WHERE order_id = $1
		ORDER BY product_name, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []pos.LineItem
	for rows.Next() {
		var (
			id    uuid.UUID
			item  pos.LineItem
			price pgtype.Numeric
		)
		if err := rows.Scan(&id, &item.ProductID, &item.ProductName, &item.Qty, &price); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.Ref = pos.PersistedRef(id)
		item.PriceAtSale = numericToDecimal(price)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (pos.Order, error) {
	var (
		o        pos.Order
		table    pgtype.Text
		payment  pgtype.Text
		discount pgtype.Numeric
		total    pgtype.Numeric
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.Status, &table, &payment, &discount, &total, &o.CreatedAt)
	if err != nil {
		return pos.Order{}, fmt.Errorf("scan order: %w", err)
	}
	o.TableNumber = table.String
	o.PaymentMethod = payment.String
	o.Discount = numericToDecimal(discount)
	o.Total = numericToDecimal(total)
	return o, nil
}

func insertItem(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, item pos.NewItem) error {
	if item.Qty <= 0 {
		return fmt.Errorf("qty must be > 0")
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO order_items (order_id, product_id, product_name, qty, price_at_sale)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, product_id, price_at_sale) WHERE product_id <> 0
		DO UPDATE SET qty = order_items.qty + EXCLUDED.qty`,
		orderID, item.ProductID, item.ProductName, item.Qty, decimalToNumeric(item.PriceAtSale))
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// recomputeTotal re-derives the order total from its lines inside the
// mutation's transaction, clamping the discount so the total never goes
// negative.
func recomputeTotal(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET total = GREATEST(sub.subtotal - orders.discount, 0)
		FROM (
			SELECT COALESCE(SUM(qty * price_at_sale), 0) AS subtotal
			FROM order_items WHERE order_id = $1
		) sub
		WHERE orders.id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("recompute total: %w", err)
	}
	return nil
}

// requireOpen fails fast when the order is missing or already terminal.
func (s *Postgres) requireOpen(ctx context.Context, orderID uuid.UUID) error {
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT status FROM orders WHERE id = $1`, orderID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if status != enum.OrderStatusOpen {
		return ErrOrderClosed
	}
	return nil
}

// resolveMissing picks the precise error after a guarded mutation touched
// zero rows.
func (s *Postgres) resolveMissing(ctx context.Context, orderID uuid.UUID) error {
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT status FROM orders WHERE id = $1`, orderID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	return ErrOrderClosed
}

// isOrderNumberConflict checks for a unique violation on the store-wide order
// number sequence (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_order_number_key"
	}
	return false
}

// isTableOccupied checks for a violation of the one-open-order-per-table
// partial unique index.
func isTableOccupied(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_open_table_key"
	}
	return false
}

func newItemLines(items []pos.NewItem) []pos.LineItem {
	lines := make([]pos.LineItem, len(items))
	for i, it := range items {
		lines[i] = pos.LineItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Qty:         it.Qty,
			PriceAtSale: it.PriceAtSale,
		}
	}
	return lines
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
