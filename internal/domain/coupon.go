package domain

import (
	"context"
	"time"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the applicable subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary amount capped at the applicable subtotal.
	DiscountFixed DiscountType = "fixed"
)

// ProductScope restricts which cart lines a coupon's discount applies to.
type ProductScope string

const (
	ScopeAll     ProductScope = "all"
	ScopeInclude ProductScope = "include"
	ScopeExclude ProductScope = "exclude"
)

// CouponUsage is one entry in a coupon's append-only redemption log.
type CouponUsage struct {
	UserID  string
	OrderID string
	UsedAt  time.Time
}

// Coupon is a discount rule. Codes are unique case-insensitively and stored
// uppercase.
type Coupon struct {
	Code          string
	DiscountType  DiscountType
	DiscountValue float64

	MinimumOrderAmount float64
	// MaximumDiscount caps percentage discounts. Nil means uncapped.
	MaximumDiscount *float64

	// UsageLimit caps total redemptions. Nil means unlimited.
	UsageLimit *int
	UsageCount int
	// UsageLimitPerUser caps redemptions per buyer. Nil means unlimited.
	UsageLimitPerUser *int
	UsedBy            []CouponUsage

	StartDate time.Time
	// EndDate is optional; nil means no upper bound.
	EndDate *time.Time

	ProductScope   ProductScope
	ScopedProducts []string

	ApplyToShipping bool
	StoreOnly       bool
	IsActive        bool
}

// TimesUsedBy counts prior redemptions by the given user.
func (c *Coupon) TimesUsedBy(userID string) int {
	if userID == "" {
		return 0
	}
	n := 0
	for _, u := range c.UsedBy {
		if u.UserID == userID {
			n++
		}
	}
	return n
}

// InScope reports whether the coupon's product scope covers the product.
func (c *Coupon) InScope(productID string) bool {
	switch c.ProductScope {
	case ScopeInclude:
		return containsID(c.ScopedProducts, productID)
	case ScopeExclude:
		return !containsID(c.ScopedProducts, productID)
	default:
		return true
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// DiscountResult is the outcome of coupon evaluation. Rejections are values,
// not errors: invalid codes are normal UX flow.
type DiscountResult struct {
	Valid            bool
	Code             string
	ProductDiscount  float64
	ShippingDiscount float64
	Message          string
}

// Total returns the combined discount amount.
func (r DiscountResult) Total() float64 {
	return r.ProductDiscount + r.ShippingDiscount
}

// CouponRepository provides coupon lookup and the redemption commit.
type CouponRepository interface {
	// GetByCode looks up a coupon by its uppercase code, or ENOTFOUND.
	GetByCode(ctx context.Context, code string) (*Coupon, error)

	// CommitUsage atomically increments usage_count iff the global limit is
	// not exhausted, and appends to the redemption log. Returns false when
	// the limit was hit concurrently. Called only on confirmed checkout
	// completion, never during preview.
	CommitUsage(ctx context.Context, code, userID, orderID string) (bool, error)
}
