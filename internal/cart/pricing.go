package cart

import (
	"github.com/dukerupert/meridian/internal/domain"
)

// priceSimple resolves a unit price for a simple item: effective price plus
// the adjustments of every selected variation option. Selections that do not
// resolve to a declared variation or option invalidate the line.
func priceSimple(item *domain.CatalogItem, selections []domain.SelectedOption) (float64, []domain.VariationSnapshot, error) {
	price := item.EffectivePrice()
	snaps := make([]domain.VariationSnapshot, 0, len(selections))

	for _, sel := range selections {
		variation, ok := item.FindVariation(sel.Label)
		if !ok {
			return 0, nil, domain.Errorf(domain.EINVALID, "cart.normalize",
				"product %q has no variation %q", item.Name, sel.Label)
		}
		option, ok := variation.FindOption(sel.Option)
		if !ok {
			return 0, nil, domain.Errorf(domain.EINVALID, "cart.normalize",
				"variation %q has no option %q", variation.Label, sel.Option)
		}
		price += option.PriceAdjustment
		snaps = append(snaps, domain.VariationSnapshot{
			Label:           variation.Label,
			Option:          option.Name,
			PriceAdjustment: option.PriceAdjustment,
		})
	}

	return price, snaps, nil
}

// priceGrouped computes a fixed-bundle unit price: the sum of every child's
// effective price times its declared quantity. Children are snapshotted for
// the order record.
func priceGrouped(item *domain.CatalogItem, children map[string]*domain.CatalogItem) (float64, []domain.ComponentSnapshot, error) {
	var total float64
	snaps := make([]domain.ComponentSnapshot, 0, len(item.GroupedComponents))

	for _, comp := range item.GroupedComponents {
		child, ok := children[comp.ProductID]
		if !ok || !child.Orderable() {
			return 0, nil, domain.Errorf(domain.EINVALID, "cart.normalize",
				"component %s of %q is unavailable", comp.ProductID, item.Name)
		}
		qty := comp.Quantity
		if qty < 1 {
			qty = 1
		}
		unit := child.EffectivePrice()
		total += unit * float64(qty)
		snaps = append(snaps, domain.ComponentSnapshot{
			ProductID: child.ID,
			Name:      child.Name,
			UnitPrice: unit,
			Quantity:  qty,
			Format:    child.Format,
		})
	}

	return total, snaps, nil
}

// priceBundle computes a configurable bundle's unit price.
//
// Per group: groupTotal = sum over members of
// effectivePrice * (1 - memberDiscount/100) * quantity, then a further
// (1 - groupDiscount/100) when the group's mode is "discounted".
// The group totals are summed into an aggregate, and the bundle's top-level
// mode decides the result: "fixed" uses the bundle's own listed price when
// positive, "discounted" applies the top-level discount to the aggregate,
// "calculated" uses the aggregate unmodified.
//
// Members flagged optional may be deselected through the excluded set; a
// deselected member contributes neither price nor snapshot. Excluding a
// required member invalidates the line.
func priceBundle(item *domain.CatalogItem, children map[string]*domain.CatalogItem, excluded map[string]bool) (float64, []domain.ComponentSnapshot, error) {
	var aggregate float64
	var snaps []domain.ComponentSnapshot

	for _, group := range item.BundleGroups {
		var groupTotal float64
		for _, member := range group.Items {
			if excluded[member.ProductID] {
				if !member.Optional {
					return 0, nil, domain.Errorf(domain.EINVALID, "cart.normalize",
						"bundle member %s of %q is required", member.ProductID, item.Name)
				}
				continue
			}
			child, ok := children[member.ProductID]
			if !ok || !child.Orderable() {
				return 0, nil, domain.Errorf(domain.EINVALID, "cart.normalize",
					"bundle member %s of %q is unavailable", member.ProductID, item.Name)
			}
			qty := member.Quantity
			if qty < 1 {
				qty = 1
			}
			unit := child.EffectivePrice() * (1 - member.DiscountPercent/100)
			groupTotal += unit * float64(qty)
			snaps = append(snaps, domain.ComponentSnapshot{
				ProductID: child.ID,
				Name:      child.Name,
				UnitPrice: unit,
				Quantity:  qty,
				Format:    child.Format,
				Group:     group.Name,
			})
		}
		if group.PricingMode == domain.BundleDiscounted {
			groupTotal *= 1 - group.DiscountPercent/100
		}
		aggregate += groupTotal
	}

	switch item.BundlePricingMode {
	case domain.BundleFixed:
		if price := item.EffectivePrice(); price > 0 {
			return price, snaps, nil
		}
		return aggregate, snaps, nil
	case domain.BundleDiscounted:
		return aggregate * (1 - item.BundleDiscountPercent/100), snaps, nil
	default:
		return aggregate, snaps, nil
	}
}

// excludedSet indexes a line request's deselected component ids.
func excludedSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// componentIDs collects every child product id a set of cart lines refers to
// through grouped compositions or bundle groups.
func componentIDs(items map[string]*domain.CatalogItem) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, item := range items {
		for _, comp := range item.GroupedComponents {
			add(comp.ProductID)
		}
		for _, group := range item.BundleGroups {
			for _, member := range group.Items {
				add(member.ProductID)
			}
		}
	}
	return ids
}
