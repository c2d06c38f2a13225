// Package cart turns heterogeneous cart line requests into priced, immutable
// line items with cart-level totals and a stock-adjustment plan.
package cart

import (
	"context"

	"github.com/dukerupert/meridian/internal/domain"
)

// Normalizer prices cart lines against a catalog snapshot. Normalization is
// a pure computation over the read-model: it validates that sufficient stock
// exists at pricing time but never reserves or decrements anything.
type Normalizer struct {
	catalog domain.CatalogReader
}

// NewNormalizer creates a cart normalizer backed by the given catalog reader.
func NewNormalizer(catalog domain.CatalogReader) *Normalizer {
	return &Normalizer{catalog: catalog}
}

// Normalize resolves, prices, and aggregates the requested lines.
// It fails with an EINVALID error when the list is empty, a product is
// unknown or not orderable, a variation selection does not exist, or a
// physical non-bundle product lacks stock for the requested quantity.
func (n *Normalizer) Normalize(ctx context.Context, requests []domain.CartLineRequest) (*domain.CartPricingSummary, error) {
	return n.normalize(ctx, requests, true)
}

// NormalizeCommitted prices lines for a checkout that has already been paid.
// Identical to Normalize except the stock-sufficiency check is skipped: at
// commit time the conditional decrement is the authority, and a shortfall is
// a fulfillment outcome rather than a validation failure.
func (n *Normalizer) NormalizeCommitted(ctx context.Context, requests []domain.CartLineRequest) (*domain.CartPricingSummary, error) {
	return n.normalize(ctx, requests, false)
}

func (n *Normalizer) normalize(ctx context.Context, requests []domain.CartLineRequest, checkStock bool) (*domain.CartPricingSummary, error) {
	const op = "cart.normalize"

	if len(requests) == 0 {
		return nil, domain.Invalid(op, "cart is empty")
	}

	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		if req.ProductID == "" {
			return nil, domain.Invalid(op, "cart line is missing a product id")
		}
		ids = append(ids, req.ProductID)
	}

	items, err := n.catalog.GetItems(ctx, ids)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load catalog items")
	}

	// Grouped and bundle lines price against their children, so a second
	// read loads every referenced component.
	children := map[string]*domain.CatalogItem{}
	if childIDs := componentIDs(items); len(childIDs) > 0 {
		children, err = n.catalog.GetItems(ctx, childIDs)
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load bundle components")
		}
	}

	summary := &domain.CartPricingSummary{
		Lines: make([]domain.NormalizedCartLine, 0, len(requests)),
	}
	planned := make(map[string]*domain.StockAdjustment)

	for _, req := range requests {
		req.ClampQuantity()

		item, ok := items[req.ProductID]
		if !ok {
			return nil, domain.Errorf(domain.EINVALID, op, "product %s is unavailable", req.ProductID)
		}
		if !item.Orderable() {
			return nil, domain.Errorf(domain.EINVALID, op, "product %q is not available for purchase", item.Name)
		}

		line, err := n.normalizeLine(item, req, children, checkStock)
		if err != nil {
			return nil, err
		}

		summary.Lines = append(summary.Lines, line)
		summary.Subtotal += line.LineSubtotal
		if line.Format == domain.FormatPhysical {
			summary.TotalPhysicalItems += line.Quantity
			summary.TotalWeightKg += line.WeightKg * float64(line.Quantity)
		}

		planAdjustments(planned, line, item, children)
	}

	summary.Subtotal = domain.RoundCents(summary.Subtotal)
	summary.RequiresShipping = summary.TotalPhysicalItems > 0
	for _, line := range summary.Lines {
		if adj, ok := planned[line.ProductID]; ok {
			summary.Adjustments = append(summary.Adjustments, *adj)
			delete(planned, line.ProductID)
		}
	}
	for _, adj := range planned {
		summary.Adjustments = append(summary.Adjustments, *adj)
	}

	return summary, nil
}

// normalizeLine resolves one request line into a priced, snapshotted line.
func (n *Normalizer) normalizeLine(item *domain.CatalogItem, req domain.CartLineRequest, children map[string]*domain.CatalogItem, checkStock bool) (domain.NormalizedCartLine, error) {
	const op = "cart.normalize"

	var (
		unitPrice  float64
		variations []domain.VariationSnapshot
		components []domain.ComponentSnapshot
		err        error
	)

	switch item.Mode() {
	case domain.ModeGrouped:
		unitPrice, components, err = priceGrouped(item, children)
	case domain.ModeBundle:
		unitPrice, components, err = priceBundle(item, children, excludedSet(req.ExcludedComponents))
	default:
		unitPrice, variations, err = priceSimple(item, req.SelectedOptions)
	}
	if err != nil {
		return domain.NormalizedCartLine{}, err
	}

	format := item.Format
	weightKg := item.WeightKg()
	if item.Mode() != domain.ModeSimple {
		// A composed line ships physically when any component does, and its
		// unit weight falls back to the sum of component weights.
		var componentWeight float64
		for _, comp := range components {
			if comp.Format == domain.FormatPhysical {
				format = domain.FormatPhysical
			}
			if child, ok := children[comp.ProductID]; ok {
				componentWeight += child.WeightKg() * float64(comp.Quantity)
			}
		}
		if weightKg == 0 {
			weightKg = componentWeight
		}
	}

	// Advisory stock check for physical, non-bundle lines. The decrement
	// itself happens at commit time and is re-checked atomically there.
	if checkStock && format == domain.FormatPhysical {
		switch item.Mode() {
		case domain.ModeSimple:
			if item.Stock < req.Quantity {
				return domain.NormalizedCartLine{}, domain.Errorf(domain.EINVALID, op,
					"only %d of %q in stock", item.Stock, item.Name)
			}
		case domain.ModeGrouped:
			for _, comp := range components {
				child := children[comp.ProductID]
				if child.Format == domain.FormatPhysical && child.Stock < comp.Quantity*req.Quantity {
					return domain.NormalizedCartLine{}, domain.Errorf(domain.EINVALID, op,
						"only %d of %q in stock", child.Stock, child.Name)
				}
			}
		}
	}

	lineSubtotal := domain.RoundCents(unitPrice * float64(req.Quantity))

	return domain.NormalizedCartLine{
		ProductID:    item.ID,
		Name:         item.Name,
		Quantity:     req.Quantity,
		UnitPrice:    unitPrice,
		LineSubtotal: lineSubtotal,
		Format:       format,
		WeightKg:     weightKg,
		Source:       item.Source,
		Variations:   variations,
		Components:   components,
		Adjustment:   lineAdjustment(item, req.Quantity),
	}, nil
}

// lineAdjustment plans the top-level item's own stock effect. Digital items
// never decrement stock; every sold item increments its sales counter.
func lineAdjustment(item *domain.CatalogItem, qty int) domain.StockAdjustment {
	adj := domain.StockAdjustment{
		ProductID:      item.ID,
		IncrementSales: qty,
	}
	if item.Format == domain.FormatPhysical && item.Mode() == domain.ModeSimple {
		adj.DecrementStock = qty
	}
	return adj
}

// planAdjustments merges the line's stock effects (including component
// decrements for composed lines) into the cart-wide plan keyed by product.
func planAdjustments(planned map[string]*domain.StockAdjustment, line domain.NormalizedCartLine, item *domain.CatalogItem, children map[string]*domain.CatalogItem) {
	merge := func(a domain.StockAdjustment) {
		if existing, ok := planned[a.ProductID]; ok {
			existing.DecrementStock += a.DecrementStock
			existing.IncrementSales += a.IncrementSales
			return
		}
		cp := a
		planned[a.ProductID] = &cp
	}

	merge(line.Adjustment)

	for _, comp := range line.Components {
		child, ok := children[comp.ProductID]
		if !ok {
			continue
		}
		adj := domain.StockAdjustment{ProductID: child.ID}
		if child.Format == domain.FormatPhysical {
			adj.DecrementStock = comp.Quantity * line.Quantity
		}
		merge(adj)
	}
}
