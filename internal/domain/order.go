package domain

import (
	"context"
	"time"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusRequiresAttention marks a paid order whose stock decrement
	// failed at commit time (oversold). Needs manual refund or backorder.
	OrderStatusRequiresAttention OrderStatus = "requires_attention"
)

// OrderTotals is the final money breakdown handed to persistence and the
// payment session. GrandTotal = max(0, ItemsTotal + ShippingCost - DiscountTotal).
type OrderTotals struct {
	ItemsTotal    float64
	ShippingCost  float64
	DiscountTotal float64
	GrandTotal    float64
}

// ShippingSelection freezes the chosen shipping option on the order record.
type ShippingSelection struct {
	OptionID      string
	MethodID      string
	RateID        string
	Label         string
	Cost          float64
	Currency      string
	Type          string
	EstimatedDays string
	MatchedZone   string
}

// Order is the persisted outcome of a completed checkout. Line items carry
// frozen snapshots, decoupling the record from future catalog/coupon edits.
type Order struct {
	ID          string
	Number      string
	Status      OrderStatus
	UserID      string
	PaymentRef  string
	Lines       []NormalizedCartLine
	Shipping    ShippingSelection
	Discount    DiscountResult
	Totals      OrderTotals
	Currency    string
	PlacedAt    time.Time
}

// OrderRepository persists completed orders. CreateOrder must be safe to call
// twice with the same payment reference (the second call returns ECONFLICT),
// which is what makes webhook-driven completion idempotent.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetByPaymentRef(ctx context.Context, paymentRef string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus) error
}
