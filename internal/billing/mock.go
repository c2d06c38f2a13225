package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing. It simulates
// successful payment flows without calling the gateway.
type MockProvider struct {
	// CreatePaymentIntentFunc overrides creation behavior when set.
	CreatePaymentIntentFunc func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// PaymentIntents stores created intents for retrieval.
	PaymentIntents map[string]*PaymentIntent

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		PaymentIntents: make(map[string]*PaymentIntent),
	}
}

// CreatePaymentIntent creates a mock payment intent.
func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreatePaymentIntent(%d, %s)", params.AmountCents, params.Currency))

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, params)
	}

	pi := &PaymentIntent{
		ID:           "pi_mock_" + uuid.New().String()[:8],
		ClientSecret: "secret_mock_" + uuid.New().String()[:8],
		AmountCents:  params.AmountCents,
		Currency:     params.Currency,
		Status:       PaymentIntentPending,
		Metadata:     params.Metadata,
		CreatedAt:    time.Now(),
	}
	m.PaymentIntents[pi.ID] = pi
	return pi, nil
}

// GetPaymentIntent retrieves a previously created mock intent.
func (m *MockProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetPaymentIntent(%s)", paymentIntentID))

	pi, ok := m.PaymentIntents[paymentIntentID]
	if !ok {
		return nil, fmt.Errorf("payment intent %s not found", paymentIntentID)
	}
	return pi, nil
}
