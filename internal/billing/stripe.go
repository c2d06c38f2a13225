package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeProvider implements Provider using Stripe Payment Intents.
type StripeProvider struct {
	apiKey string
}

// NewStripeProvider creates a Stripe billing provider.
func NewStripeProvider(apiKey string) (*StripeProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe api key is required")
	}
	stripe.Key = apiKey
	return &StripeProvider{apiKey: apiKey}, nil
}

// IsTestMode reports whether the configured key is a test-mode key.
func (s *StripeProvider) IsTestMode() bool {
	return len(s.apiKey) > 7 && s.apiKey[:7] == "sk_test"
}

// CreatePaymentIntent creates a Stripe payment intent.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	piParams := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(params.AmountCents),
		Currency:     stripe.String(params.Currency),
		ReceiptEmail: stripe.String(params.CustomerEmail),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	piParams.Context = ctx
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		piParams.SetIdempotencyKey(params.IdempotencyKey)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return convertPaymentIntent(pi), nil
}

// GetPaymentIntent retrieves a Stripe payment intent.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	piParams := &stripe.PaymentIntentParams{}
	piParams.Context = ctx

	pi, err := paymentintent.Get(paymentIntentID, piParams)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent %s: %w", paymentIntentID, err)
	}

	return convertPaymentIntent(pi), nil
}

func convertPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	status := PaymentIntentPending
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = PaymentIntentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		status = PaymentIntentCanceled
	}

	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       status,
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0),
	}
}
