package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for checkout observability.
type BusinessMetrics struct {
	// Quote funnel
	CartsNormalized  prometheus.Counter
	CartRejections   *prometheus.CounterVec
	QuotesCalculated prometheus.Counter
	QuoteNoOptions   prometheus.Counter
	CartValue        prometheus.Histogram

	// Coupons
	CouponAccepted *prometheus.CounterVec
	CouponRejected *prometheus.CounterVec

	// Orders
	OrdersCreated   prometheus.Counter
	OrderValue      prometheus.Histogram
	OrderItemCount  prometheus.Histogram
	StockOversold   prometheus.Counter
	CouponLimitLost prometheus.Counter

	// Workers
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
}

// NewBusinessMetrics creates checkout metrics and registers them with the
// given registerer. Tests pass a fresh prometheus.NewRegistry.
func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	factory := promauto.With(reg)
	return &BusinessMetrics{
		CartsNormalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_carts_normalized_total",
			Help: "Carts successfully normalized into priced line items",
		}),
		CartRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_cart_rejections_total",
			Help: "Cart normalization rejections by error code",
		}, []string{"code"}),
		QuotesCalculated: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_shipping_quotes_total",
			Help: "Shipping option lists calculated",
		}),
		QuoteNoOptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_shipping_quotes_empty_total",
			Help: "Quotes where configured methods left no viable option",
		}),
		CartValue: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "meridian_cart_value_dollars",
			Help:    "Cart subtotal at quote time",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
		CouponAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_coupon_accepted_total",
			Help: "Coupon evaluations that produced a discount",
		}, []string{"type"}),
		CouponRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_coupon_rejected_total",
			Help: "Coupon evaluations rejected, by reason",
		}, []string{"reason"}),
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_orders_created_total",
			Help: "Orders committed after payment confirmation",
		}),
		OrderValue: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "meridian_order_value_dollars",
			Help:    "Grand total of committed orders",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
		OrderItemCount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "meridian_order_item_count",
			Help:    "Line item count of committed orders",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		}),
		StockOversold: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_stock_oversold_total",
			Help: "Commit-time stock decrements that found insufficient stock",
		}),
		CouponLimitLost: factory.NewCounter(prometheus.CounterOpts{
			Name: "meridian_coupon_limit_lost_total",
			Help: "Commit-time coupon redemptions that lost the usage-limit race",
		}),
		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_jobs_processed_total",
			Help: "Background jobs processed by subject",
		}, []string{"subject"}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_jobs_failed_total",
			Help: "Background jobs failed by subject",
		}, []string{"subject"}),
	}
}
