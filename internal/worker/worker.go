// Package worker consumes payment confirmations and drives the post-payment
// checkout commit. Exactly-once behavior comes from the commit itself being
// idempotent per payment intent, not from delivery guarantees.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/dukerupert/meridian/internal/billing"
	"github.com/dukerupert/meridian/internal/checkout"
	"github.com/dukerupert/meridian/internal/events"
	"github.com/dukerupert/meridian/internal/telemetry"
)

// Config holds worker configuration.
type Config struct {
	// WorkerID uniquely identifies this worker instance.
	WorkerID string

	// QueueGroup makes concurrent workers share the subscription.
	QueueGroup string
}

// Worker processes payment-succeeded events.
type Worker struct {
	config  Config
	conn    *nats.Conn
	billing billing.Provider
	service *checkout.Service
	metrics *telemetry.BusinessMetrics
	logger  *slog.Logger
}

// NewWorker creates a payment-confirmation worker.
func NewWorker(conn *nats.Conn, billingProvider billing.Provider, service *checkout.Service, metrics *telemetry.BusinessMetrics, config Config, logger *slog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.QueueGroup == "" {
		config.QueueGroup = "checkout-commit"
	}

	return &Worker{
		config:  config,
		conn:    conn,
		billing: billingProvider,
		service: service,
		metrics: metrics,
		logger:  logger.With("worker_id", config.WorkerID),
	}
}

// Run subscribes and processes events until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	msgs := make(chan *nats.Msg, 64)
	sub, err := w.conn.ChanQueueSubscribe(events.SubjectPaymentSucceeded, w.config.QueueGroup, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.SubjectPaymentSucceeded, err)
	}
	defer sub.Unsubscribe()

	w.logger.Info("worker started", "subject", events.SubjectPaymentSucceeded, "queue", w.config.QueueGroup)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return nil
		case msg := <-msgs:
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg *nats.Msg) {
	subject := events.SubjectPaymentSucceeded

	var event events.PaymentSucceededEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		w.metrics.JobsFailed.WithLabelValues(subject).Inc()
		w.logger.Error("malformed payment event", "error", err)
		return
	}

	handleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := w.commit(handleCtx, event.PaymentIntentID); err != nil {
		w.metrics.JobsFailed.WithLabelValues(subject).Inc()
		w.logger.Error("checkout commit failed", "payment_intent", event.PaymentIntentID, "error", err)
		return
	}

	w.metrics.JobsProcessed.WithLabelValues(subject).Inc()
}

// commit verifies payment state with the gateway and replays the commit
// envelope stored on the intent.
func (w *Worker) commit(ctx context.Context, paymentIntentID string) error {
	intent, err := w.billing.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to load payment intent: %w", err)
	}
	if intent.Status != billing.PaymentIntentSucceeded {
		return fmt.Errorf("payment intent %s is %s, not succeeded", intent.ID, intent.Status)
	}

	raw, ok := intent.Metadata[checkout.MetadataRequestKey]
	if !ok || raw == "" {
		return fmt.Errorf("payment intent %s carries no commit envelope", intent.ID)
	}

	var req checkout.CommitRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return fmt.Errorf("failed to decode commit envelope: %w", err)
	}

	order, err := w.service.Complete(ctx, intent.ID, req)
	if err != nil {
		return err
	}

	w.logger.Info("order committed", "order_id", order.ID, "number", order.Number, "status", string(order.Status))
	return nil
}
