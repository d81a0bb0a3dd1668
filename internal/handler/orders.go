package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/patrick-wrks/gojack-samui-restaurant/internal/enum"
	"github.com/patrick-wrks/gojack-samui-restaurant/internal/pos"
	"github.com/patrick-wrks/gojack-samui-restaurant/internal/store"
)

// OrderStore defines the store methods needed by order handlers.
// Satisfied by *store.Postgres; narrow interface for testability.
type OrderStore interface {
	CreateOrder(ctx context.Context, arg pos.CreateOrderParams) (pos.Order, error)
	FetchOpenOrders(ctx context.Context) ([]pos.Order, error)
	FetchOrderByTable(ctx context.Context, table string) (pos.Order, bool, error)
	FetchOrdersInRange(ctx context.Context, start, end time.Time) ([]pos.Order, error)
	AddItems(ctx context.Context, orderID uuid.UUID, items []pos.NewItem) error
	UpdateItemQty(ctx context.Context, itemID uuid.UUID, qty int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	CompleteOrder(ctx context.Context, orderID uuid.UUID, paymentMethod string, finalTotal decimal.Decimal) error
	TableForOrder(ctx context.Context, orderID uuid.UUID) (string, error)
	TableForItem(ctx context.Context, itemID uuid.UUID) (string, error)
}

// Broadcaster pushes payload-free change notifications to watching clients.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	OrderChanged(table string)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	store OrderStore
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Get("/orders/open", h.ListOpen)
	r.Get("/orders", h.ListRange)
	r.Get("/tables/{table}/order", h.GetByTable)
	r.Post("/orders/{id}/items", h.AddItems)
	r.Post("/orders/{id}/complete", h.Complete)
	r.Delete("/orders/{id}", h.Delete)
	r.Patch("/items/{id}", h.UpdateItemQty)
	r.Delete("/items/{id}", h.DeleteItem)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableNumber   string             `json:"table_number"`
	Status        string             `json:"status"`
	PaymentMethod string             `json:"payment_method"`
	Discount      string             `json:"discount"`
	Items         []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
	PriceAtSale string `json:"price_at_sale"`
}

type updateQtyRequest struct {
	Qty int `json:"qty"`
}

type completeOrderRequest struct {
	PaymentMethod string `json:"payment_method"`
	Total         string `json:"total"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   int64               `json:"order_number"`
	Status        string              `json:"status"`
	TableNumber   *string             `json:"table_number"`
	PaymentMethod *string             `json:"payment_method"`
	Discount      string              `json:"discount"`
	Total         string              `json:"total"`
	CreatedAt     time.Time           `json:"created_at"`
	Items         []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ID          string `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
	PriceAtSale string `json:"price_at_sale"`
}

func toOrderResponse(o pos.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		Discount:    o.Discount.StringFixed(2),
		Total:       o.Total.StringFixed(2),
		CreatedAt:   o.CreatedAt,
		Items:       make([]orderItemResponse, 0, len(o.Items)),
	}
	if o.TableNumber != "" {
		resp.TableNumber = &o.TableNumber
	}
	if o.PaymentMethod != "" {
		resp.PaymentMethod = &o.PaymentMethod
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:          it.Ref.String(),
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Qty:         it.Qty,
			PriceAtSale: it.PriceAtSale.StringFixed(2),
		})
	}
	return resp
}

// --- Handlers ---

// Create handles POST /orders. Quick-sale checkouts arrive with status
// "completed" and a payment method; table orders arrive "open".
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	switch req.Status {
	case enum.OrderStatusOpen:
		if req.PaymentMethod != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "open orders cannot carry a payment method"})
			return
		}
	case enum.OrderStatusCompleted:
		if len(req.Items) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
			return
		}
		if req.PaymentMethod == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be open or completed"})
		return
	}

	items, err := parseItems(req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	discount := decimal.Zero
	if req.Discount != "" {
		discount, err = decimal.NewFromString(req.Discount)
		if err != nil || discount.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount"})
			return
		}
	}

	order, err := h.store.CreateOrder(r.Context(), pos.CreateOrderParams{
		TableNumber:   req.TableNumber,
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		Discount:      discount,
		Items:         items,
	})
	if err != nil {
		logrus.WithError(err).Error("create order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create order"})
		return
	}

	h.hub.OrderChanged(order.TableNumber)
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// ListOpen handles GET /orders/open.
func (h *OrderHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.FetchOpenOrders(r.Context())
	if err != nil {
		logrus.WithError(err).Error("list open orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list orders"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

// ListRange handles GET /orders?start=RFC3339&end=RFC3339 for reports.
func (h *OrderHandler) ListRange(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start"})
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end"})
		return
	}
	orders, err := h.store.FetchOrdersInRange(r.Context(), start, end)
	if err != nil {
		logrus.WithError(err).Error("list orders in range")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list orders"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderListResponse(orders))
}

// GetByTable handles GET /tables/{table}/order.
func (h *OrderHandler) GetByTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	order, ok, err := h.store.FetchOrderByTable(r.Context(), table)
	if err != nil {
		logrus.WithError(err).Error("fetch order by table")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch order"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open order for table"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// AddItems handles POST /orders/{id}/items.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	var req struct {
		Items []orderItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	items, err := parseItems(req.Items)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	if err := h.store.AddItems(r.Context(), orderID, items); err != nil {
		h.writeStoreError(w, err, "add items")
		return
	}
	h.broadcastOrder(r.Context(), orderID)
	w.WriteHeader(http.StatusNoContent)
}

// UpdateItemQty handles PATCH /items/{id}.
func (h *OrderHandler) UpdateItemQty(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}
	var req updateQtyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// Broadcast target must be resolved before a qty<=0 update deletes the row.
	table, lookupErr := h.store.TableForItem(r.Context(), itemID)

	if err := h.store.UpdateItemQty(r.Context(), itemID, req.Qty); err != nil {
		h.writeStoreError(w, err, "update item qty")
		return
	}
	if lookupErr == nil {
		h.hub.OrderChanged(table)
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteItem handles DELETE /items/{id}.
func (h *OrderHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	table, lookupErr := h.store.TableForItem(r.Context(), itemID)

	if err := h.store.DeleteItem(r.Context(), itemID); err != nil {
		h.writeStoreError(w, err, "delete item")
		return
	}
	if lookupErr == nil {
		h.hub.OrderChanged(table)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /orders/{id} (void of an open order).
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	table, lookupErr := h.store.TableForOrder(r.Context(), orderID)

	if err := h.store.DeleteOrder(r.Context(), orderID); err != nil {
		h.writeStoreError(w, err, "delete order")
		return
	}
	if lookupErr == nil {
		h.hub.OrderChanged(table)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /orders/{id}/complete (checkout / request bill).
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	var req completeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.PaymentMethod != enum.PaymentMethodCash && req.PaymentMethod != enum.PaymentMethodBank {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment_method"})
		return
	}
	total, err := decimal.NewFromString(req.Total)
	if err != nil || total.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid total"})
		return
	}

	if err := h.store.CompleteOrder(r.Context(), orderID, req.PaymentMethod, total); err != nil {
		h.writeStoreError(w, err, "complete order")
		return
	}
	h.broadcastOrder(r.Context(), orderID)
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *OrderHandler) broadcastOrder(ctx context.Context, orderID uuid.UUID) {
	table, err := h.store.TableForOrder(ctx, orderID)
	if err != nil {
		h.hub.OrderChanged("")
		return
	}
	h.hub.OrderChanged(table)
}

// writeStoreError maps store errors to HTTP status codes.
func (h *OrderHandler) writeStoreError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound), errors.Is(err, store.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrOrderClosed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logrus.WithError(err).Error(action)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to " + action})
	}
}

func parseItems(reqs []orderItemRequest) ([]pos.NewItem, error) {
	items := make([]pos.NewItem, 0, len(reqs))
	for _, it := range reqs {
		if it.ProductName == "" {
			return nil, errors.New("product_name is required")
		}
		if it.Qty <= 0 {
			return nil, errors.New("qty must be > 0")
		}
		price, err := decimal.NewFromString(it.PriceAtSale)
		if err != nil || price.IsNegative() {
			return nil, errors.New("invalid price_at_sale")
		}
		items = append(items, pos.NewItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Qty:         it.Qty,
			PriceAtSale: price,
		})
	}
	return items, nil
}

func toOrderListResponse(orders []pos.Order) map[string][]orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return map[string][]orderResponse{"orders": out}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("encode JSON response")
	}
}
