// Package events publishes order lifecycle events for downstream consumers
// (email dispatch, fulfillment tooling, analytics).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for the order lifecycle.
const (
	SubjectPaymentSucceeded    = "meridian.payment.succeeded"
	SubjectOrderCreated        = "meridian.order.created"
	SubjectFulfillmentOversold = "meridian.fulfillment.oversold"
)

// PaymentSucceededEvent is published by the payment-webhook glue when the
// gateway confirms payment. The checkout worker consumes it to commit the
// order exactly once per payment intent.
type PaymentSucceededEvent struct {
	PaymentIntentID string    `json:"paymentIntentId"`
	ConfirmedAt     time.Time `json:"confirmedAt"`
}

// OrderCreatedEvent announces a committed order.
type OrderCreatedEvent struct {
	OrderID    string    `json:"orderId"`
	Number     string    `json:"number"`
	UserID     string    `json:"userId,omitempty"`
	GrandTotal float64   `json:"grandTotal"`
	Currency   string    `json:"currency"`
	PlacedAt   time.Time `json:"placedAt"`
}

// FulfillmentOversoldEvent flags a paid order whose stock decrement failed.
// Consumers drive the manual refund/backorder workflow.
type FulfillmentOversoldEvent struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
}

// Publisher publishes events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
}

// NATSPublisher publishes JSON-encoded events over NATS.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher wraps an established NATS connection.
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// Publish marshals the event and sends it on the subject.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// NoopPublisher discards events. Used in tests and when eventing is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject string, event any) error {
	return nil
}
