package shipping

import (
	"context"
	"fmt"
	"sort"

	"github.com/dukerupert/meridian/internal/address"
)

// CartTotals is the slice of cart state rate calculation needs. The checkout
// layer builds it from the cart pricing summary.
type CartTotals struct {
	Subtotal         float64
	PhysicalItems    int
	WeightKg         float64
	RequiresShipping bool
}

// Calculator evaluates configured methods and tiers against a destination and
// cart totals. Quoting is a pure read: calling it twice with unchanged
// configuration yields identical options.
type Calculator struct {
	zones    ZoneRepository
	methods  MethodRepository
	currency string
}

// NewCalculator creates a rate calculator over the given repositories.
func NewCalculator(zones ZoneRepository, methods MethodRepository, currency string) *Calculator {
	return &Calculator{
		zones:    zones,
		methods:  methods,
		currency: currency,
	}
}

// Options returns every viable shipping option for the cart, cheapest first.
//
// Carts without physical items get a single zero-cost instant-delivery
// option. Physical carts to non-US destinations fail with
// ErrUnsupportedRegion. When no methods are configured at all, a hardcoded
// fallback option is offered; when methods exist but every tier is filtered
// out, the empty list is returned and the caller must reject checkout.
func (c *Calculator) Options(ctx context.Context, cart CartTotals, dest address.Address, coords *address.Coordinates) ([]Option, error) {
	if !cart.RequiresShipping {
		return []Option{digitalOption(c.currency)}, nil
	}

	if !dest.IsDomestic() {
		return nil, ErrUnsupportedRegion
	}

	zones, err := c.zones.ListZones(ctx)
	if err != nil {
		return nil, err
	}
	matched := MatchZones(zones, dest, coords)

	var defaultZone *Zone
	for i := range zones {
		if zones[i].IsDefault {
			defaultZone = &zones[i]
			break
		}
	}

	methods, err := c.methods.ListMethods(ctx)
	if err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		return []Option{fallbackOption(c.currency)}, nil
	}

	var options []Option
	for _, method := range methods {
		if method.Status != MethodActive || !method.AllowPhysical {
			continue
		}

		tiers := method.Rates
		if len(tiers) == 0 {
			tiers = []Rate{synthesizeTier(method)}
		}

		for _, tier := range tiers {
			option, ok := c.evaluateTier(method, tier, cart, matched, defaultZone)
			if ok {
				options = append(options, option)
			}
		}
	}

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Cost < options[j].Cost
	})

	return options, nil
}

// evaluateTier applies the tier's filters and computes its cost.
func (c *Calculator) evaluateTier(method Method, tier Rate, cart CartTotals, matched []MatchedZone, defaultZone *Zone) (Option, bool) {
	var tierZone *MatchedZone
	if tier.ZoneID != "" {
		for i := range matched {
			if matched[i].Zone.ID == tier.ZoneID {
				tierZone = &matched[i]
				break
			}
		}
		if tierZone == nil {
			// Fallback allowance: a tier scoped to the global default zone
			// still applies when that zone did not match directly.
			if defaultZone == nil || defaultZone.ID != tier.ZoneID {
				return Option{}, false
			}
		}
	}

	if tier.MinSubtotal != nil && cart.Subtotal < *tier.MinSubtotal {
		return Option{}, false
	}
	if tier.MaxSubtotal != nil && cart.Subtotal > *tier.MaxSubtotal {
		return Option{}, false
	}

	if tier.MinDistanceKm != nil || tier.MaxDistanceKm != nil {
		if tierZone == nil || tierZone.DistanceKm == nil {
			return Option{}, false
		}
		dist := *tierZone.DistanceKm
		if tier.MinDistanceKm != nil && dist < *tier.MinDistanceKm {
			return Option{}, false
		}
		if tier.MaxDistanceKm != nil && dist > *tier.MaxDistanceKm {
			return Option{}, false
		}
	}

	base := tier.BaseCost
	if tier.UseMethodCost || isLegacyBlank(tier) {
		base = method.DefaultCost
	}
	if tier.FreeAbove != nil && cart.Subtotal >= *tier.FreeAbove {
		base = 0
	}

	cost := base +
		tier.PerItemCost*float64(cart.PhysicalItems) +
		tier.PerWeightKgCost*cart.WeightKg +
		tier.HandlingFee +
		method.HandlingFee
	if cost < 0 {
		cost = 0
	}

	label := tier.Label
	if label == "" {
		label = method.Name
	}

	zoneName := ""
	if tierZone != nil {
		zoneName = tierZone.Zone.Name
	} else if len(matched) > 0 {
		zoneName = matched[0].Zone.Name
	}

	return Option{
		OptionID:      method.ID + ":" + tier.ID,
		MethodID:      method.ID,
		RateID:        tier.ID,
		Label:         label,
		Cost:          roundCents(cost),
		Currency:      c.currency,
		Type:          tier.Type,
		EstimatedDays: estimatedDays(method),
		MatchedZone:   zoneName,
	}, true
}

// ResolveSelection deterministically picks the quoted option the buyer chose,
// accepting an option id, a (method, rate) pair, or a bare method id. A
// selection that no longer resolves means the configuration changed between
// quote and checkout; the caller must re-quote.
func ResolveSelection(options []Option, sel Selection) (*Option, error) {
	if sel.OptionID == "" && sel.MethodID == "" {
		return nil, ErrNoSelection
	}

	if sel.OptionID != "" {
		for i := range options {
			if options[i].OptionID == sel.OptionID {
				return &options[i], nil
			}
		}
	}

	if sel.MethodID != "" && sel.RateID != "" {
		for i := range options {
			if options[i].MethodID == sel.MethodID && options[i].RateID == sel.RateID {
				return &options[i], nil
			}
		}
	}

	if sel.MethodID != "" && sel.RateID == "" && sel.OptionID == "" {
		for i := range options {
			if options[i].MethodID == sel.MethodID {
				return &options[i], nil
			}
		}
	}

	return nil, ErrOptionExpired
}

// synthesizeTier builds the implicit tier for a method with none declared.
func synthesizeTier(method Method) Rate {
	return Rate{
		ID:       "default",
		Label:    method.Name,
		Type:     "flat",
		BaseCost: method.DefaultCost,
	}
}

// isLegacyBlank reports whether a tier declares no cost fields and no
// restricting attributes, in which case it inherits the method default cost.
func isLegacyBlank(tier Rate) bool {
	return tier.BaseCost == 0 &&
		tier.PerItemCost == 0 &&
		tier.PerWeightKgCost == 0 &&
		tier.HandlingFee == 0 &&
		tier.ZoneID == "" &&
		tier.MinSubtotal == nil &&
		tier.MaxSubtotal == nil &&
		tier.FreeAbove == nil &&
		tier.MinDistanceKm == nil &&
		tier.MaxDistanceKm == nil
}

func digitalOption(currency string) Option {
	return Option{
		OptionID:      "digital:instant",
		MethodID:      "digital",
		RateID:        "instant",
		Label:         "Instant Delivery",
		Cost:          0,
		Currency:      currency,
		Type:          "digital",
		EstimatedDays: "0",
	}
}

// fallbackOption covers stores that have never configured shipping.
func fallbackOption(currency string) Option {
	return Option{
		OptionID:      "fallback:standard",
		MethodID:      "fallback",
		RateID:        "standard",
		Label:         "Standard Shipping",
		Cost:          9.99,
		Currency:      currency,
		Type:          "flat",
		EstimatedDays: "5-7",
	}
}

func estimatedDays(method Method) string {
	switch {
	case method.EstimatedDaysMin > 0 && method.EstimatedDaysMax > method.EstimatedDaysMin:
		return fmt.Sprintf("%d-%d", method.EstimatedDaysMin, method.EstimatedDaysMax)
	case method.EstimatedDaysMax > 0:
		return fmt.Sprintf("%d", method.EstimatedDaysMax)
	default:
		return ""
	}
}

func roundCents(v float64) float64 {
	// Mirrors domain.RoundCents; kept local so the package stays free of
	// domain imports, like the error codes above.
	const cents = 100
	if v >= 0 {
		return float64(int64(v*cents+0.5)) / cents
	}
	return float64(int64(v*cents-0.5)) / cents
}
