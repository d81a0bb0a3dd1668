package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusOpen      = "open"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// ── Payment methods (no DB constraint, configurable labels) ──

const (
	PaymentMethodCash = "cash"
	PaymentMethodBank = "bank"
)
