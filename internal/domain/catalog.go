package domain

import (
	"context"
	"strings"
)

// =============================================================================
// CATALOG READ-MODEL
// =============================================================================
//
// The pricing core never sees raw persisted product documents. Adapters
// translate whatever the catalog store holds into CatalogItem, a normalized
// snapshot that is read-only to this package.

// ProductFormat distinguishes items that need fulfillment from instant delivery.
type ProductFormat string

const (
	FormatPhysical ProductFormat = "physical"
	FormatDigital  ProductFormat = "digital"
)

// CatalogStatus represents the lifecycle state of a catalog item.
type CatalogStatus string

const (
	CatalogStatusActive   CatalogStatus = "active"
	CatalogStatusDraft    CatalogStatus = "draft"
	CatalogStatusArchived CatalogStatus = "archived"
)

// StructuralMode identifies how an item's price is composed.
// An item is in exactly one mode.
type StructuralMode string

const (
	ModeSimple  StructuralMode = "simple"
	ModeGrouped StructuralMode = "grouped"
	ModeBundle  StructuralMode = "bundle"
)

// BundlePricingMode controls how a bundle (or one of its groups) is priced.
type BundlePricingMode string

const (
	// BundleCalculated sums member prices as-is.
	BundleCalculated BundlePricingMode = "calculated"
	// BundleDiscounted applies a percentage discount on top of the calculated sum.
	BundleDiscounted BundlePricingMode = "discounted"
	// BundleFixed uses the item's own listed price verbatim, ignoring members.
	BundleFixed BundlePricingMode = "fixed"
)

// VariationOption is one selectable value within a variation dimension.
type VariationOption struct {
	ID              string
	Name            string
	PriceAdjustment float64
	Stock           int
}

// Variation is one dimension of buyer choice on a simple item (e.g. "Size").
type Variation struct {
	Label   string
	Options []VariationOption
}

// GroupedComponent is one fixed child of a grouped item.
type GroupedComponent struct {
	ProductID string
	Quantity  int
}

// BundleItem is one member of a configurable bundle group.
type BundleItem struct {
	ProductID       string
	Quantity        int
	DiscountPercent float64
	Optional        bool
}

// BundleGroup is a named group of bundle members with its own pricing mode.
type BundleGroup struct {
	Name            string
	PricingMode     BundlePricingMode
	DiscountPercent float64
	Items           []BundleItem
}

// CatalogItem is the normalized snapshot of a product at pricing time.
type CatalogItem struct {
	ID     string
	Name   string
	Status CatalogStatus

	// Source identifies which catalog surface the item belongs to
	// (e.g. "store", "listing"). Store-only coupons check this.
	Source string

	Price     float64
	SalePrice *float64

	// Stock is tracked for physical items only.
	Stock       int
	Format      ProductFormat
	WeightGrams int

	Variations []Variation

	// Exactly one of GroupedComponents / BundleGroups is non-empty for
	// non-simple items.
	GroupedComponents []GroupedComponent
	BundleGroups      []BundleGroup

	// Top-level bundle pricing. Only meaningful when BundleGroups is non-empty.
	BundlePricingMode     BundlePricingMode
	BundleDiscountPercent float64
}

// EffectivePrice returns the sale price when set and lower than list price,
// else the list price.
func (c *CatalogItem) EffectivePrice() float64 {
	if c.SalePrice != nil && *c.SalePrice < c.Price {
		return *c.SalePrice
	}
	return c.Price
}

// Mode reports the item's structural mode.
func (c *CatalogItem) Mode() StructuralMode {
	switch {
	case len(c.BundleGroups) > 0:
		return ModeBundle
	case len(c.GroupedComponents) > 0:
		return ModeGrouped
	default:
		return ModeSimple
	}
}

// Orderable reports whether the item may appear in a cart.
func (c *CatalogItem) Orderable() bool {
	return c.Status == CatalogStatusActive
}

// WeightKg converts the stored gram weight for shipping math.
func (c *CatalogItem) WeightKg() float64 {
	return float64(c.WeightGrams) / 1000.0
}

// FindVariation resolves a variation dimension by label, case-insensitively.
func (c *CatalogItem) FindVariation(label string) (*Variation, bool) {
	for i := range c.Variations {
		if strings.EqualFold(c.Variations[i].Label, label) {
			return &c.Variations[i], true
		}
	}
	return nil, false
}

// FindOption resolves an option within a variation by id or name.
func (v *Variation) FindOption(idOrName string) (*VariationOption, bool) {
	for i := range v.Options {
		if v.Options[i].ID == idOrName || strings.EqualFold(v.Options[i].Name, idOrName) {
			return &v.Options[i], true
		}
	}
	return nil, false
}

// =============================================================================
// REPOSITORY INTERFACES
// =============================================================================

// CatalogReader loads catalog snapshots for pricing. Implementations filter
// to orderable statuses where the backing store allows it; the normalizer
// re-checks Orderable either way.
type CatalogReader interface {
	// GetItem returns a single catalog snapshot, or ENOTFOUND.
	GetItem(ctx context.Context, id string) (*CatalogItem, error)

	// GetItems returns snapshots for the given ids, keyed by id.
	// Missing ids are simply absent from the map.
	GetItems(ctx context.Context, ids []string) (map[string]*CatalogItem, error)
}

// StockWriter applies the stock-adjustment plan at order-confirmation time.
type StockWriter interface {
	// DecrementStock atomically performs stock -= qty iff stock >= qty.
	// Returns false when insufficient stock remained, which callers treat
	// as a fulfillment failure, not a checkout rejection.
	DecrementStock(ctx context.Context, productID string, qty int) (bool, error)

	// IncrementSales bumps the sales counter. Best-effort.
	IncrementSales(ctx context.Context, productID string, qty int) error
}
