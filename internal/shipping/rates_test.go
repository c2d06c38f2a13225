package shipping_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/meridian/internal/address"
	"github.com/dukerupert/meridian/internal/shipping"
)

// staticRepo serves fixed zones and methods.
type staticRepo struct {
	zones   []shipping.Zone
	methods []shipping.Method
}

func (r *staticRepo) ListZones(ctx context.Context) ([]shipping.Zone, error) {
	return r.zones, nil
}

func (r *staticRepo) ListMethods(ctx context.Context) ([]shipping.Method, error) {
	return r.methods, nil
}

func newCalculator(repo *staticRepo) *shipping.Calculator {
	return shipping.NewCalculator(repo, repo, "usd")
}

func ptr(v float64) *float64 { return &v }

func physicalCart(subtotal float64, items int, weightKg float64) shipping.CartTotals {
	return shipping.CartTotals{
		Subtotal:         subtotal,
		PhysicalItems:    items,
		WeightKg:         weightKg,
		RequiresShipping: true,
	}
}

func TestCalculator_DigitalCartGetsInstantDelivery(t *testing.T) {
	calc := newCalculator(&staticRepo{})
	cart := shipping.CartTotals{Subtotal: 20.00, RequiresShipping: false}

	options, err := calc.Options(context.Background(), cart, seattle, nil)

	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "Instant Delivery", options[0].Label)
	assert.Equal(t, 0.0, options[0].Cost)
}

func TestCalculator_NonDomesticRejected(t *testing.T) {
	calc := newCalculator(&staticRepo{
		methods: []shipping.Method{{ID: "std", Name: "Standard", Status: shipping.MethodActive, AllowPhysical: true}},
	})
	toronto := address.Address{
		AddressLine1: "1 Yonge St",
		City:         "Toronto",
		State:        "ON",
		PostalCode:   "M5E 1E5",
		Country:      "Canada",
	}

	_, err := calc.Options(context.Background(), physicalCart(80, 1, 2), toronto, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, shipping.ErrUnsupportedRegion)
}

func TestCalculator_NoMethodsFallsBack(t *testing.T) {
	calc := newCalculator(&staticRepo{})

	options, err := calc.Options(context.Background(), physicalCart(80, 1, 2), seattle, nil)

	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "fallback:standard", options[0].OptionID)
	assert.Equal(t, 9.99, options[0].Cost)
	assert.Equal(t, "5-7", options[0].EstimatedDays)
}

func TestCalculator_TierCostBreakdown(t *testing.T) {
	calc := newCalculator(&staticRepo{
		methods: []shipping.Method{
			{
				ID: "ground", Name: "Ground", Status: shipping.MethodActive, AllowPhysical: true,
				EstimatedDaysMin: 3, EstimatedDaysMax: 5,
				Rates: []shipping.Rate{
					{ID: "t1", Label: "Ground", BaseCost: 5, PerWeightKgCost: 1, FreeAbove: ptr(150.0)},
				},
			},
		},
	})

	// 5 base + 2kg × 1; subtotal 80 stays below the free threshold.
	options, err := calc.Options(context.Background(), physicalCart(80, 1, 2), seattle, nil)

	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, 7.00, options[0].Cost)
	assert.Equal(t, "3-5", options[0].EstimatedDays)
}

func TestCalculator_FreeAboveThreshold(t *testing.T) {
	repo := &staticRepo{
		methods: []shipping.Method{
			{
				ID: "ground", Name: "Ground", Status: shipping.MethodActive, AllowPhysical: true,
				Rates: []shipping.Rate{
					{ID: "t1", BaseCost: 10, HandlingFee: 2, FreeAbove: ptr(50.0)},
				},
			},
		},
	}
	calc := newCalculator(repo)

	// At the threshold the base cost drops out; additive fees survive.
	options, err := calc.Options(context.Background(), physicalCart(50.00, 1, 0), seattle, nil)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, 2.00, options[0].Cost)

	// Just below it the base cost applies in full.
	options, err = calc.Options(context.Background(), physicalCart(49.99, 1, 0), seattle, nil)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, 12.00, options[0].Cost)
}

func TestCalculator_SubtotalBounds(t *testing.T) {
	calc := newCalculator(&staticRepo{
		methods: []shipping.Method{
			{
				ID: "tiered", Name: "Tiered", Status: shipping.MethodActive, AllowPhysical: true,
				Rates: []shipping.Rate{
					{ID: "small", BaseCost: 5, MaxSubtotal: ptr(25.0)},
					{ID: "large", BaseCost: 3, MinSubtotal: ptr(25.01)},
				},
			},
		},
	})

	options, err := calc.Options(context.Background(), physicalCart(20, 1, 0), seattle, nil)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "small", options[0].RateID)

	options, err = calc.Options(context.Background(), physicalCart(60, 1, 0), seattle, nil)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "large", options[0].RateID)
}

func TestCalculator_ZoneScopedTier(t *testing.T) {
	calc := newCalculator(&staticRepo{
		zones: []shipping.Zone{
			{ID: "west", Name: "West", States: []string{"WA", "OR", "CA"}},
			{ID: "east", Name: "East", States: []string{"NY", "NJ"}},
		},
		methods: []shipping.Method{
			{
				ID: "ground", Name: "Ground", Status: shipping.MethodActive, AllowPhysical: true,
				Rates: []shipping.Rate{
					{ID: "west-rate", ZoneID: "west", BaseCost: 4},
					{ID: "east-rate", ZoneID: "east", BaseCost: 8},
				},
			},
		},
	})

	options, err := calc.Options(context.Background(), physicalCart(30, 1, 0), seattle, nil)

	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "west-rate", options[0].RateID)
	assert.Equal(t, "West", options[0].MatchedZone)
}

func TestCalculator_DefaultZoneFallback(t *testing.T) {
	// The tier is scoped to the default zone, which does not match the
	// destination directly; the tier still applies.
	calc := newCalculator(&staticRepo{
		zones: []shipping.Zone{
			{ID: "nowhere", Name: "Nowhere", IsDefault: true, States: []string{"AK"}},
		},
		methods: []shipping.Method{
			{
				ID: "ground", Name: "Ground", Status: shipping.MethodActive, AllowPhysical: true,
				Rates: []shipping.Rate{
					{ID: "t1", ZoneID: "nowhere", BaseCost: 6},
				},
			},
		},
	})

	options, err := calc.Options(context.Background(), physicalCart(30, 1, 0), seattle, nil)

	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, 6.00, options[0].Cost)
}

func TestCalculator_DistanceBoundsNeedGeofence(t *testing.T) {
	calc := newCalculator(&staticRepo{
		zones: []shipping.Zone{
			{
				ID: "metro", Name: "Metro",
				GeoFence: &shipping.GeoFence{CenterLat: 47.6062, CenterLng: -122.3321, RadiusKm: 300},
			},
		},
		methods: []shipping.Method{
			{
				ID: "courier", Name: "Courier", Status: shipping.MethodActive, AllowPhysical: true,
				Rates: []shipping.Rate{
					{ID: "near", ZoneID: "metro", BaseCost: 5, MaxDistanceKm: ptr(20.0)},
					{ID: "far", ZoneID: "metro", BaseCost: 15, MinDistanceKm: ptr(20.01)},
				},
			},
		},
	})

	near := &address.Coordinates{Lat: 47.61, Lng: -122.33}
	options, err := calc.Options(context.Background(), physicalCart(30, 1, 0), seattle, near)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "near", options[0].RateID)

	// Without coordinates the geofenced zone never matches, so neither
	// distance tier survives.
	options, err = calc.Options(context.Background(), physicalCart(30, 1, 0), seattle, nil)
	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestCalculator_InactiveAndDigitalOnlyMethodsSkipped(t *testing.T) {
	calc := newCalculator(&staticRepo{
		methods: []shipping.Method{
			{ID: "off", Name: "Disabled", Status: shipping.MethodInactive, AllowPhysical: true, DefaultCost: 1},
			{ID: "dl", Name: "Download", Status: shipping.MethodActive, AllowPhysical: false, DefaultCost: 0},
			{ID: "on", Name: "Active", Status: shipping.MethodActive, AllowPhysical: true, DefaultCost: 3},
		},
	})

	options, err := calc.Options(context.Background(), physicalCart(30, 1, 0), seattle, nil)

	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "on", options[0].MethodID)
	assert.Equal(t, 3.00, options[0].Cost)
}

func TestCalculator_OptionsSortedByCost(t *testing.T) {
	calc := newCalculator(&staticRepo{
		methods: []shipping.Method{
			{
				ID: "express", Name: "Express", Status: shipping.MethodActive, AllowPhysical: true,
				Rates: []shipping.Rate{{ID: "t1", BaseCost: 15}},
			},
			{
				ID: "ground", Name: "Ground", Status: shipping.MethodActive, AllowPhysical: true,
				Rates: []shipping.Rate{{ID: "t1", BaseCost: 5}},
			},
		},
	})

	options, err := calc.Options(context.Background(), physicalCart(30, 1, 0), seattle, nil)

	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "ground", options[0].MethodID)
	assert.Equal(t, "express", options[1].MethodID)
}

func TestCalculator_QuotingIsIdempotent(t *testing.T) {
	calc := newCalculator(&staticRepo{
		zones: []shipping.Zone{{ID: "us", Name: "US"}},
		methods: []shipping.Method{
			{
				ID: "ground", Name: "Ground", Status: shipping.MethodActive, AllowPhysical: true,
				Rates: []shipping.Rate{
					{ID: "t1", BaseCost: 5, PerItemCost: 0.5, PerWeightKgCost: 1},
				},
			},
		},
	})
	cart := physicalCart(42.37, 3, 1.2)

	first, err := calc.Options(context.Background(), cart, seattle, nil)
	require.NoError(t, err)
	second, err := calc.Options(context.Background(), cart, seattle, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolveSelection(t *testing.T) {
	options := []shipping.Option{
		{OptionID: "ground:t1", MethodID: "ground", RateID: "t1", Cost: 5},
		{OptionID: "express:t1", MethodID: "express", RateID: "t1", Cost: 15},
	}

	got, err := shipping.ResolveSelection(options, shipping.Selection{OptionID: "express:t1"})
	require.NoError(t, err)
	assert.Equal(t, "express", got.MethodID)

	got, err = shipping.ResolveSelection(options, shipping.Selection{MethodID: "ground", RateID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "ground:t1", got.OptionID)

	got, err = shipping.ResolveSelection(options, shipping.Selection{MethodID: "ground"})
	require.NoError(t, err)
	assert.Equal(t, "ground:t1", got.OptionID)
}

func TestResolveSelection_Expired(t *testing.T) {
	options := []shipping.Option{
		{OptionID: "ground:t1", MethodID: "ground", RateID: "t1"},
	}

	_, err := shipping.ResolveSelection(options, shipping.Selection{OptionID: "ground:t2"})
	assert.ErrorIs(t, err, shipping.ErrOptionExpired)

	_, err = shipping.ResolveSelection(options, shipping.Selection{})
	assert.ErrorIs(t, err, shipping.ErrNoSelection)
}
