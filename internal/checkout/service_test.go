package checkout_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/meridian/internal/address"
	"github.com/dukerupert/meridian/internal/billing"
	"github.com/dukerupert/meridian/internal/cart"
	"github.com/dukerupert/meridian/internal/checkout"
	"github.com/dukerupert/meridian/internal/coupon"
	"github.com/dukerupert/meridian/internal/domain"
	"github.com/dukerupert/meridian/internal/events"
	"github.com/dukerupert/meridian/internal/shipping"
	"github.com/dukerupert/meridian/internal/telemetry"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeCatalog struct {
	items map[string]*domain.CatalogItem
	stock map[string]int
	sales map[string]int
}

func (f *fakeCatalog) GetItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, domain.NotFound("catalog.get_item", "catalog item", id)
	}
	return item, nil
}

func (f *fakeCatalog) GetItems(ctx context.Context, ids []string) (map[string]*domain.CatalogItem, error) {
	out := make(map[string]*domain.CatalogItem)
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (f *fakeCatalog) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	if f.stock[productID] < qty {
		return false, nil
	}
	f.stock[productID] -= qty
	return true, nil
}

func (f *fakeCatalog) IncrementSales(ctx context.Context, productID string, qty int) error {
	f.sales[productID] += qty
	return nil
}

type fakeOrders struct {
	byRef map[string]*domain.Order
	byID  map[string]*domain.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{byRef: map[string]*domain.Order{}, byID: map[string]*domain.Order{}}
}

func (f *fakeOrders) CreateOrder(ctx context.Context, order *domain.Order) error {
	if _, ok := f.byRef[order.PaymentRef]; ok {
		return domain.Conflict("order.create", "order already exists for payment reference")
	}
	cp := *order
	f.byRef[order.PaymentRef] = &cp
	f.byID[order.ID] = &cp
	return nil
}

func (f *fakeOrders) GetByPaymentRef(ctx context.Context, paymentRef string) (*domain.Order, error) {
	order, ok := f.byRef[paymentRef]
	if !ok {
		return nil, domain.NotFound("order.get_by_payment_ref", "order", paymentRef)
	}
	return order, nil
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	order, ok := f.byID[orderID]
	if !ok {
		return domain.NotFound("order.update_status", "order", orderID)
	}
	order.Status = status
	return nil
}

type fakeCouponRepo struct {
	coupons map[string]*domain.Coupon
	commits int
}

func (f *fakeCouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	c, ok := f.coupons[code]
	if !ok {
		return nil, domain.NotFound("coupon.get_by_code", "coupon", code)
	}
	return c, nil
}

func (f *fakeCouponRepo) CommitUsage(ctx context.Context, code, userID, orderID string) (bool, error) {
	c, ok := f.coupons[code]
	if !ok {
		return false, domain.NotFound("coupon.commit_usage", "coupon", code)
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false, nil
	}
	c.UsageCount++
	f.commits++
	return true, nil
}

type staticShipping struct {
	zones   []shipping.Zone
	methods []shipping.Method
}

func (r *staticShipping) ListZones(ctx context.Context) ([]shipping.Zone, error) {
	return r.zones, nil
}

func (r *staticShipping) ListMethods(ctx context.Context) ([]shipping.Method, error) {
	return r.methods, nil
}

// =============================================================================
// FIXTURE
// =============================================================================

type fixture struct {
	service *checkout.Service
	catalog *fakeCatalog
	orders  *fakeOrders
	coupons *fakeCouponRepo
	billing *billing.MockProvider
}

func floatPtr(v float64) *float64 { return &v }

// newFixture builds a checkout service over in-memory collaborators:
// one physical item at 100.00 on sale for 80.00 weighing 2 kg, one digital
// item at 10.00, a ground method at base 5 + 1/kg free above 150, and the
// CODE10 percentage coupon that also discounts shipping.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := &fakeCatalog{
		items: map[string]*domain.CatalogItem{
			"prod-b": {
				ID: "prod-b", Name: "Field Jacket", Status: domain.CatalogStatusActive,
				Source: "store", Price: 100.00, SalePrice: floatPtr(80.00),
				Stock: 10, Format: domain.FormatPhysical, WeightGrams: 2000,
			},
			"prod-a": {
				ID: "prod-a", Name: "Guide PDF", Status: domain.CatalogStatusActive,
				Source: "store", Price: 10.00, Format: domain.FormatDigital,
			},
		},
		stock: map[string]int{"prod-b": 10},
		sales: map[string]int{},
	}

	ship := &staticShipping{
		methods: []shipping.Method{
			{
				ID: "ground", Name: "Ground", Status: shipping.MethodActive, AllowPhysical: true,
				EstimatedDaysMin: 3, EstimatedDaysMax: 5,
				Rates: []shipping.Rate{
					{ID: "t1", Label: "Ground", BaseCost: 5, PerWeightKgCost: 1, FreeAbove: floatPtr(150.0)},
				},
			},
		},
	}

	coupons := &fakeCouponRepo{coupons: map[string]*domain.Coupon{
		"CODE10": {
			Code: "CODE10", DiscountType: domain.DiscountPercentage, DiscountValue: 10,
			ProductScope: domain.ScopeAll, ApplyToShipping: true,
			StartDate: time.Now().Add(-time.Hour), IsActive: true,
		},
	}}

	orders := newFakeOrders()
	provider := billing.NewMockProvider()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := checkout.NewService(
		cart.NewNormalizer(catalog),
		shipping.NewCalculator(ship, ship, "usd"),
		coupon.NewEngine(coupons),
		provider,
		orders,
		catalog,
		events.NoopPublisher{},
		telemetry.NewBusinessMetrics(prometheus.NewRegistry()),
		logger,
		"usd",
	)

	return &fixture{
		service: service,
		catalog: catalog,
		orders:  orders,
		coupons: coupons,
		billing: provider,
	}
}

var shipTo = &address.Address{
	AddressLine1: "123 Main St",
	City:         "Seattle",
	State:        "WA",
	PostalCode:   "98101",
	Country:      "US",
}

func physicalCheckout() checkout.CheckoutRequest {
	return checkout.CheckoutRequest{
		Lines:           []domain.CartLineRequest{{ProductID: "prod-b", Quantity: 1}},
		ShippingAddress: shipTo,
		Shipping:        shipping.Selection{MethodID: "ground"},
		CustomerEmail:   "buyer@example.com",
		UserID:          "user-1",
	}
}

// =============================================================================
// QUOTE
// =============================================================================

func TestService_Quote_DigitalCart(t *testing.T) {
	f := newFixture(t)

	quote, err := f.service.Quote(context.Background(), checkout.QuoteRequest{
		Lines: []domain.CartLineRequest{{ProductID: "prod-a", Quantity: 2}},
	})

	require.NoError(t, err)
	assert.Equal(t, 20.00, quote.Cart.Subtotal)
	assert.False(t, quote.Cart.RequiresShipping)
	require.Len(t, quote.Options, 1)
	assert.Equal(t, "Instant Delivery", quote.Options[0].Label)
	assert.Equal(t, 0.0, quote.Options[0].Cost)
}

func TestService_Quote_PhysicalCartNeedsAddress(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Quote(context.Background(), checkout.QuoteRequest{
		Lines: []domain.CartLineRequest{{ProductID: "prod-b", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestService_Quote_PhysicalCart(t *testing.T) {
	f := newFixture(t)

	quote, err := f.service.Quote(context.Background(), checkout.QuoteRequest{
		Lines:           []domain.CartLineRequest{{ProductID: "prod-b", Quantity: 1}},
		ShippingAddress: shipTo,
	})

	require.NoError(t, err)
	assert.Equal(t, 80.00, quote.Cart.Subtotal)
	require.Len(t, quote.Options, 1)
	// 5 base + 2 kg × 1, subtotal below the free threshold.
	assert.Equal(t, 7.00, quote.Options[0].Cost)
}

func TestService_Quote_EmptyLinesRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Quote(context.Background(), checkout.QuoteRequest{})

	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

// =============================================================================
// TOTALS
// =============================================================================

func TestTotals_GrandTotalBreakdown(t *testing.T) {
	summary := &domain.CartPricingSummary{Subtotal: 80.00}
	discount := domain.DiscountResult{Valid: true, ProductDiscount: 8.00, ShippingDiscount: 0.70}

	totals := checkout.Totals(summary, 7.00, discount)

	assert.Equal(t, 80.00, totals.ItemsTotal)
	assert.Equal(t, 7.00, totals.ShippingCost)
	assert.Equal(t, 8.70, totals.DiscountTotal)
	assert.Equal(t, 78.30, totals.GrandTotal)
}

func TestTotals_NeverNegative(t *testing.T) {
	summary := &domain.CartPricingSummary{Subtotal: 10.00}
	discount := domain.DiscountResult{Valid: true, ProductDiscount: 50.00}

	totals := checkout.Totals(summary, 0, discount)

	assert.Equal(t, 0.00, totals.GrandTotal)
}

// =============================================================================
// BEGIN PAYMENT
// =============================================================================

func TestService_BeginPayment(t *testing.T) {
	f := newFixture(t)
	req := physicalCheckout()
	req.CouponCode = "CODE10"

	intent, totals, err := f.service.BeginPayment(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 78.30, totals.GrandTotal)
	assert.Equal(t, int64(7830), intent.AmountCents)
	assert.Contains(t, intent.Metadata[checkout.MetadataRequestKey], "prod-b")
}

func TestService_BeginPayment_InvalidCouponRejected(t *testing.T) {
	f := newFixture(t)
	req := physicalCheckout()
	req.CouponCode = "BOGUS"

	_, _, err := f.service.BeginPayment(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestService_BeginPayment_RequiresEmail(t *testing.T) {
	f := newFixture(t)
	req := physicalCheckout()
	req.CustomerEmail = ""

	_, _, err := f.service.BeginPayment(context.Background(), req)

	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestService_BeginPayment_ExpiredSelection(t *testing.T) {
	f := newFixture(t)
	req := physicalCheckout()
	req.Shipping = shipping.Selection{OptionID: "ground:no-such-tier"}

	_, _, err := f.service.BeginPayment(context.Background(), req)

	assert.ErrorIs(t, err, shipping.ErrOptionExpired)
}

// =============================================================================
// COMPLETE
// =============================================================================

// payFor runs BeginPayment and decodes the commit envelope it stored on the
// intent, mirroring what the payment worker replays after the webhook.
func payFor(t *testing.T, f *fixture, req checkout.CheckoutRequest) checkout.CommitRequest {
	t.Helper()

	intent, _, err := f.service.BeginPayment(context.Background(), req)
	require.NoError(t, err)

	var commit checkout.CommitRequest
	require.NoError(t, json.Unmarshal([]byte(intent.Metadata[checkout.MetadataRequestKey]), &commit))
	return commit
}

func TestService_Complete(t *testing.T) {
	f := newFixture(t)
	req := physicalCheckout()
	req.CouponCode = "CODE10"
	commit := payFor(t, f, req)

	order, err := f.service.Complete(context.Background(), "pi_123", commit)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.True(t, strings.HasPrefix(order.Number, "MD-"))
	assert.Equal(t, "pi_123", order.PaymentRef)
	assert.Equal(t, 78.30, order.Totals.GrandTotal)
	assert.Equal(t, "ground", order.Shipping.MethodID)

	// Stock plan applied: one unit decremented, one sale counted.
	assert.Equal(t, 9, f.catalog.stock["prod-b"])
	assert.Equal(t, 1, f.catalog.sales["prod-b"])

	// Coupon redemption recorded exactly once.
	assert.Equal(t, 1, f.coupons.commits)
}

func TestService_Complete_Idempotent(t *testing.T) {
	f := newFixture(t)
	commit := payFor(t, f, physicalCheckout())

	first, err := f.service.Complete(context.Background(), "pi_777", commit)
	require.NoError(t, err)

	second, err := f.service.Complete(context.Background(), "pi_777", commit)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	// The redelivery did not touch stock again.
	assert.Equal(t, 9, f.catalog.stock["prod-b"])
}

func TestService_Complete_OversoldFlagsOrder(t *testing.T) {
	f := newFixture(t)
	commit := payFor(t, f, physicalCheckout())

	// Someone else bought the remaining stock between payment and webhook
	// delivery. The paid order must still land, flagged for attention, rather
	// than bounce off cart validation forever.
	f.catalog.items["prod-b"].Stock = 0
	f.catalog.stock["prod-b"] = 0

	order, err := f.service.Complete(context.Background(), "pi_888", commit)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRequiresAttention, order.Status)

	persisted, err := f.orders.GetByPaymentRef(context.Background(), "pi_888")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRequiresAttention, persisted.Status)
}

func TestService_Complete_CouponDeactivatedAfterPayment(t *testing.T) {
	f := newFixture(t)
	req := physicalCheckout()
	req.CouponCode = "CODE10"
	commit := payFor(t, f, req)

	// The coupon was deactivated after the buyer was charged 78.30. The order
	// records the quoted discount and totals, not a re-evaluation.
	f.coupons.coupons["CODE10"].IsActive = false

	order, err := f.service.Complete(context.Background(), "pi_999", commit)

	require.NoError(t, err)
	assert.True(t, order.Discount.Valid)
	assert.Equal(t, 8.70, order.Totals.DiscountTotal)
	assert.Equal(t, 78.30, order.Totals.GrandTotal)
	assert.Equal(t, 1, f.coupons.commits)
}
