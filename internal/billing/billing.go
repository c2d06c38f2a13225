// Package billing is the opaque payment-gateway seam. The checkout core
// hands it final totals and gets back a payment reference; everything else
// about the gateway is somebody else's problem.
package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// Implementations can use Stripe, PayPal, Square, etc.
type Provider interface {
	// CreatePaymentIntent creates a payment intent for a checkout total.
	// Returns the intent with a client secret for frontend confirmation.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent, used to verify
	// payment state before committing an order.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)
}

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountCents is the amount in the smallest currency unit.
	AmountCents int64

	// Currency code (ISO 4217), e.g. "usd".
	Currency string

	CustomerEmail string

	// IdempotencyKey makes retried creations safe.
	IdempotencyKey string

	// Metadata is attached verbatim; the checkout layer stores the cart
	// reference and totals breakdown here so the webhook can commit.
	Metadata map[string]string
}

// PaymentIntentStatus mirrors the gateway's intent lifecycle.
type PaymentIntentStatus string

const (
	PaymentIntentPending   PaymentIntentStatus = "pending"
	PaymentIntentSucceeded PaymentIntentStatus = "succeeded"
	PaymentIntentCanceled  PaymentIntentStatus = "canceled"
)

// PaymentIntent represents a payment in progress or completed.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       PaymentIntentStatus
	Metadata     map[string]string
	CreatedAt    time.Time
}
