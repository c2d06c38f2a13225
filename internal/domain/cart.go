package domain

import "math"

// Quantity bounds for a single cart line. Requests outside the range are
// clamped, not rejected.
const (
	MinLineQuantity = 1
	MaxLineQuantity = 99
)

// SelectedOption references a variation choice on a cart line.
type SelectedOption struct {
	Label  string `json:"label" validate:"required"`
	Option string `json:"option" validate:"required"` // option id or name
}

// CartLineRequest is the boundary input for one cart line.
type CartLineRequest struct {
	ProductID       string           `json:"productId" validate:"required"`
	Quantity        int              `json:"quantity"`
	SelectedOptions []SelectedOption `json:"selectedOptions,omitempty" validate:"dive"`

	// ExcludedComponents deselects bundle members by product id. Only members
	// flagged optional may be excluded.
	ExcludedComponents []string `json:"excludedComponents,omitempty"`
}

// ClampQuantity forces the requested quantity into [MinLineQuantity, MaxLineQuantity].
func (r *CartLineRequest) ClampQuantity() {
	if r.Quantity < MinLineQuantity {
		r.Quantity = MinLineQuantity
	}
	if r.Quantity > MaxLineQuantity {
		r.Quantity = MaxLineQuantity
	}
}

// VariationSnapshot freezes a resolved variation choice on the order record.
type VariationSnapshot struct {
	Label           string  `json:"label"`
	Option          string  `json:"option"`
	PriceAdjustment float64 `json:"priceAdjustment"`
}

// ComponentSnapshot freezes one grouped-product child or bundle member so the
// order record stays faithful regardless of future catalog edits.
type ComponentSnapshot struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	UnitPrice float64       `json:"unitPrice"`
	Quantity  int           `json:"quantity"`
	Format    ProductFormat `json:"format"`

	// Group names the bundle group the member came from. Empty for grouped
	// products.
	Group string `json:"group,omitempty"`
}

// StockAdjustment is the planned inventory effect of one cart line.
// DecrementStock is zero for digital items. The plan is applied at
// order-confirmation time, never at normalization time.
type StockAdjustment struct {
	ProductID      string
	DecrementStock int
	IncrementSales int
}

// NormalizedCartLine is a priced, immutable cart line.
type NormalizedCartLine struct {
	ProductID    string
	Name         string
	Quantity     int
	UnitPrice    float64
	LineSubtotal float64
	Format       ProductFormat
	WeightKg     float64
	Source       string

	Variations []VariationSnapshot
	Components []ComponentSnapshot

	Adjustment StockAdjustment
}

// CartPricingSummary aggregates normalized lines with cart-level totals.
// Invariants: Subtotal >= 0; RequiresShipping iff TotalPhysicalItems > 0.
type CartPricingSummary struct {
	Lines              []NormalizedCartLine
	Subtotal           float64
	RequiresShipping   bool
	TotalPhysicalItems int
	TotalWeightKg      float64
	Adjustments        []StockAdjustment
}

// RoundCents rounds a monetary value to two decimal places. Applied only at
// line-subtotal and summary-total boundaries so intermediate multiplications
// do not compound rounding error.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
