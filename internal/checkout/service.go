// Package checkout orchestrates the pricing pipeline: cart normalization,
// shipping resolution, coupon evaluation, payment-intent creation, and the
// idempotent post-payment commit.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/meridian/internal/address"
	"github.com/dukerupert/meridian/internal/billing"
	"github.com/dukerupert/meridian/internal/cart"
	"github.com/dukerupert/meridian/internal/coupon"
	"github.com/dukerupert/meridian/internal/domain"
	"github.com/dukerupert/meridian/internal/events"
	"github.com/dukerupert/meridian/internal/shipping"
	"github.com/dukerupert/meridian/internal/telemetry"
)

// MetadataRequestKey is the payment-intent metadata key carrying the
// serialized commit envelope: the cart lines plus the quoted shipping,
// discount, and totals. The commit step reads it back to build the order.
const MetadataRequestKey = "checkout_request"

// Quote is the result of pricing a cart against a destination.
type Quote struct {
	Cart    *domain.CartPricingSummary
	Options []shipping.Option
}

// Service drives checkout. Quote and EvaluateCoupon are pure reads and
// safely repeatable; only Complete has side effects, and it is idempotent
// per payment reference.
type Service struct {
	normalizer *cart.Normalizer
	rates      *shipping.Calculator
	coupons    *coupon.Engine
	billing    billing.Provider
	orders     domain.OrderRepository
	stock      domain.StockWriter
	publisher  events.Publisher
	metrics    *telemetry.BusinessMetrics
	logger     *slog.Logger
	currency   string
}

// NewService wires the checkout pipeline.
func NewService(
	normalizer *cart.Normalizer,
	rates *shipping.Calculator,
	coupons *coupon.Engine,
	billingProvider billing.Provider,
	orders domain.OrderRepository,
	stock domain.StockWriter,
	publisher events.Publisher,
	metrics *telemetry.BusinessMetrics,
	logger *slog.Logger,
	currency string,
) *Service {
	return &Service{
		normalizer: normalizer,
		rates:      rates,
		coupons:    coupons,
		billing:    billingProvider,
		orders:     orders,
		stock:      stock,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
		currency:   currency,
	}
}

// Quote normalizes the cart and calculates shipping options for it.
// A cart with physical items requires a shipping address.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	const op = "checkout.quote"

	if err := validateRequest(op, req); err != nil {
		return nil, err
	}

	summary, err := s.normalizer.Normalize(ctx, req.Lines)
	if err != nil {
		s.metrics.CartRejections.WithLabelValues(domain.ErrorCode(err)).Inc()
		return nil, err
	}
	s.metrics.CartsNormalized.Inc()
	s.metrics.CartValue.Observe(summary.Subtotal)

	dest := address.Address{}
	if req.ShippingAddress != nil {
		dest = *req.ShippingAddress
	} else if summary.RequiresShipping {
		return nil, domain.Invalid(op, "a shipping address is required for physical items")
	}

	options, err := s.rates.Options(ctx, cartTotals(summary), dest, req.Coordinates)
	if err != nil {
		return nil, err
	}
	s.metrics.QuotesCalculated.Inc()
	if summary.RequiresShipping && len(options) == 0 {
		s.metrics.QuoteNoOptions.Inc()
	}

	return &Quote{Cart: summary, Options: options}, nil
}

// EvaluateCoupon previews a coupon against a priced cart. Pure read; never
// burns a use.
func (s *Service) EvaluateCoupon(ctx context.Context, code string, summary *domain.CartPricingSummary, shippingCost float64, userID string) (domain.DiscountResult, error) {
	result, err := s.coupons.Evaluate(ctx, coupon.EvaluateParams{
		Code:         code,
		CartSubtotal: summary.Subtotal,
		Lines:        summary.Lines,
		ShippingCost: shippingCost,
		UserID:       userID,
	})
	if err != nil {
		return domain.DiscountResult{}, err
	}

	if result.Valid {
		s.metrics.CouponAccepted.WithLabelValues("preview").Inc()
	} else {
		s.metrics.CouponRejected.WithLabelValues(rejectionReason(result.Message)).Inc()
	}
	return result, nil
}

// Totals combines items, shipping, and discount into the final breakdown.
// GrandTotal never goes below zero.
func Totals(summary *domain.CartPricingSummary, shippingCost float64, discount domain.DiscountResult) domain.OrderTotals {
	items := summary.Subtotal
	discountTotal := domain.RoundCents(discount.Total())

	grand := domain.RoundCents(items + shippingCost - discountTotal)
	if grand < 0 {
		grand = 0
	}

	return domain.OrderTotals{
		ItemsTotal:    items,
		ShippingCost:  domain.RoundCents(shippingCost),
		DiscountTotal: discountTotal,
		GrandTotal:    grand,
	}
}

// BeginPayment re-prices the checkout request server-side, resolves the
// selected shipping option against a fresh quote, and opens a payment intent
// carrying the commit envelope in its metadata so the webhook-driven commit
// can rebuild the order without trusting the client and without re-pricing
// what was already charged.
func (s *Service) BeginPayment(ctx context.Context, req CheckoutRequest) (*billing.PaymentIntent, *domain.OrderTotals, error) {
	const op = "checkout.begin_payment"

	if err := validateRequest(op, req); err != nil {
		return nil, nil, err
	}

	quote, err := s.Quote(ctx, QuoteRequest{
		Lines:           req.Lines,
		ShippingAddress: req.ShippingAddress,
		Coordinates:     req.Coordinates,
	})
	if err != nil {
		return nil, nil, err
	}

	option, err := shipping.ResolveSelection(quote.Options, req.Shipping)
	if err != nil {
		return nil, nil, err
	}

	discount := domain.DiscountResult{}
	if req.CouponCode != "" {
		discount, err = s.EvaluateCoupon(ctx, req.CouponCode, quote.Cart, option.Cost, req.UserID)
		if err != nil {
			return nil, nil, err
		}
		if !discount.Valid {
			return nil, nil, domain.Invalid(op, discount.Message)
		}
	}

	totals := Totals(quote.Cart, option.Cost, discount)

	commit := CommitRequest{
		Lines:    req.Lines,
		UserID:   req.UserID,
		Email:    req.CustomerEmail,
		Shipping: shippingSelection(option),
		Discount: discount,
		Totals:   totals,
	}
	commitJSON, err := json.Marshal(commit)
	if err != nil {
		return nil, nil, domain.Internal(err, op, "failed to serialize commit envelope")
	}

	intent, err := s.billing.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		AmountCents:    toCents(totals.GrandTotal),
		Currency:       s.currency,
		CustomerEmail:  req.CustomerEmail,
		IdempotencyKey: uuid.New().String(),
		Metadata: map[string]string{
			MetadataRequestKey: string(commitJSON),
			"items_total":      fmt.Sprintf("%.2f", totals.ItemsTotal),
			"shipping_cost":    fmt.Sprintf("%.2f", totals.ShippingCost),
			"discount_total":   fmt.Sprintf("%.2f", totals.DiscountTotal),
		},
	})
	if err != nil {
		return nil, nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to create payment intent")
	}

	return intent, &totals, nil
}

// Complete commits a paid checkout: it persists the order with the quoted
// shipping, discount, and totals frozen at payment time, applies the stock
// plan with conditional decrements, records the coupon redemption, and
// publishes lifecycle events. Shipping rates and coupons are never
// re-evaluated here; the buyer already paid the quoted amount.
//
// Idempotent per payment reference: a second call returns the existing
// order. Required because payment webhooks redeliver.
func (s *Service) Complete(ctx context.Context, paymentRef string, req CommitRequest) (*domain.Order, error) {
	const op = "checkout.complete"

	if existing, err := s.orders.GetByPaymentRef(ctx, paymentRef); err == nil && existing != nil {
		return existing, nil
	} else if err != nil && !domain.IsCode(err, domain.ENOTFOUND) {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to check for existing order")
	}

	// Rebuilds line snapshots and the stock plan without the advisory stock
	// check: the conditional decrement below is the authority, and a
	// shortfall after payment is a fulfillment problem, not a cart error.
	summary, err := s.normalizer.NormalizeCommitted(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:         uuid.New().String(),
		Number:     orderNumber(),
		Status:     domain.OrderStatusPaid,
		UserID:     req.UserID,
		PaymentRef: paymentRef,
		Lines:      summary.Lines,
		Shipping:   req.Shipping,
		Discount:   req.Discount,
		Totals:     req.Totals,
		Currency:   s.currency,
		PlacedAt:   time.Now().UTC(),
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if domain.IsCode(err, domain.ECONFLICT) {
			// Lost the idempotency race to a concurrent delivery.
			return s.orders.GetByPaymentRef(ctx, paymentRef)
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to persist order")
	}

	s.applyStockPlan(ctx, order, summary.Adjustments)
	s.commitCoupon(ctx, order, req.Discount)

	s.metrics.OrdersCreated.Inc()
	s.metrics.OrderValue.Observe(order.Totals.GrandTotal)
	s.metrics.OrderItemCount.Observe(float64(len(order.Lines)))

	if err := s.publisher.Publish(ctx, events.SubjectOrderCreated, events.OrderCreatedEvent{
		OrderID:    order.ID,
		Number:     order.Number,
		UserID:     order.UserID,
		GrandTotal: order.Totals.GrandTotal,
		Currency:   order.Currency,
		PlacedAt:   order.PlacedAt,
	}); err != nil {
		s.logger.Error("failed to publish order.created", "order_id", order.ID, "error", err)
	}

	return order, nil
}

// applyStockPlan performs the planned decrements with the conditional update
// `stock -= q iff stock >= q`. A failed decrement after payment marks the
// order for manual handling instead of failing it.
func (s *Service) applyStockPlan(ctx context.Context, order *domain.Order, plan []domain.StockAdjustment) {
	oversold := false

	for _, adj := range plan {
		if adj.DecrementStock > 0 {
			ok, err := s.stock.DecrementStock(ctx, adj.ProductID, adj.DecrementStock)
			if err != nil {
				s.logger.Error("stock decrement failed", "order_id", order.ID, "product_id", adj.ProductID, "error", err)
				continue
			}
			if !ok {
				oversold = true
				s.metrics.StockOversold.Inc()
				s.logger.Warn("oversold at commit", "order_id", order.ID, "product_id", adj.ProductID, "requested", adj.DecrementStock)
				if err := s.publisher.Publish(ctx, events.SubjectFulfillmentOversold, events.FulfillmentOversoldEvent{
					OrderID:   order.ID,
					ProductID: adj.ProductID,
					Requested: adj.DecrementStock,
				}); err != nil {
					s.logger.Error("failed to publish fulfillment.oversold", "order_id", order.ID, "error", err)
				}
			}
		}
		if adj.IncrementSales > 0 {
			if err := s.stock.IncrementSales(ctx, adj.ProductID, adj.IncrementSales); err != nil {
				s.logger.Error("sales increment failed", "order_id", order.ID, "product_id", adj.ProductID, "error", err)
			}
		}
	}

	if oversold {
		order.Status = domain.OrderStatusRequiresAttention
		if err := s.orders.UpdateStatus(ctx, order.ID, order.Status); err != nil {
			s.logger.Error("failed to flag oversold order", "order_id", order.ID, "error", err)
		}
	}
}

// commitCoupon records the redemption. Losing the usage-limit race here is
// absorbed: the buyer was quoted the discount in good faith.
func (s *Service) commitCoupon(ctx context.Context, order *domain.Order, discount domain.DiscountResult) {
	if !discount.Valid {
		return
	}
	committed, err := s.coupons.Commit(ctx, discount.Code, order.UserID, order.ID)
	if err != nil {
		s.logger.Error("coupon commit failed", "order_id", order.ID, "code", discount.Code, "error", err)
		return
	}
	if !committed {
		s.metrics.CouponLimitLost.Inc()
		s.logger.Warn("coupon usage limit exhausted at commit", "order_id", order.ID, "code", discount.Code)
	}
}

func cartTotals(summary *domain.CartPricingSummary) shipping.CartTotals {
	return shipping.CartTotals{
		Subtotal:         summary.Subtotal,
		PhysicalItems:    summary.TotalPhysicalItems,
		WeightKg:         summary.TotalWeightKg,
		RequiresShipping: summary.RequiresShipping,
	}
}

func shippingSelection(option *shipping.Option) domain.ShippingSelection {
	return domain.ShippingSelection{
		OptionID:      option.OptionID,
		MethodID:      option.MethodID,
		RateID:        option.RateID,
		Label:         option.Label,
		Cost:          option.Cost,
		Currency:      option.Currency,
		Type:          option.Type,
		EstimatedDays: option.EstimatedDays,
		MatchedZone:   option.MatchedZone,
	}
}

func toCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

func orderNumber() string {
	return "MD-" + strings.ToUpper(uuid.New().String()[:8])
}

// rejectionReason buckets coupon rejection messages into a low-cardinality
// metric label.
func rejectionReason(message string) string {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "not found"):
		return "not_found"
	case strings.Contains(m, "usage limit"), strings.Contains(m, "maximum number"):
		return "usage_limit"
	case strings.Contains(m, "expired"):
		return "expired"
	case strings.Contains(m, "not active"):
		return "inactive"
	case strings.Contains(m, "minimum order"):
		return "minimum_order"
	case strings.Contains(m, "store products"):
		return "store_only"
	case strings.Contains(m, "does not apply"):
		return "out_of_scope"
	default:
		return "other"
	}
}
