// Package coupon validates coupon codes against carts and computes discounts.
// Rejections are values, never errors: an invalid code is normal storefront
// flow, not an exceptional condition.
package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/meridian/internal/domain"
)

// Engine evaluates coupons. Evaluation is a pure read; redemption is a
// separate explicit commit so previews never burn a use.
type Engine struct {
	repo domain.CouponRepository
	now  func() time.Time
}

// NewEngine creates a coupon engine over the given repository.
func NewEngine(repo domain.CouponRepository) *Engine {
	return &Engine{
		repo: repo,
		now:  time.Now,
	}
}

// EvaluateParams carries the cart state a coupon is judged against.
type EvaluateParams struct {
	Code         string
	CartSubtotal float64
	Lines        []domain.NormalizedCartLine
	ShippingCost float64
	UserID       string
}

// Evaluate validates the code and computes the discount. Every rejection
// reason comes back as an invalid DiscountResult with a message; the error
// return is reserved for repository failures.
func (e *Engine) Evaluate(ctx context.Context, p EvaluateParams) (domain.DiscountResult, error) {
	code := strings.ToUpper(strings.TrimSpace(p.Code))
	if code == "" {
		return reject(code, "Please enter a coupon code"), nil
	}

	c, err := e.repo.GetByCode(ctx, code)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return reject(code, "Coupon code not found"), nil
		}
		return domain.DiscountResult{}, domain.WrapError(err, domain.EINTERNAL, "coupon.evaluate", "failed to look up coupon")
	}

	if !c.IsActive {
		return reject(code, "This coupon is no longer active"), nil
	}

	now := e.now()
	if now.Before(c.StartDate) {
		return reject(code, "This coupon is not active yet"), nil
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return reject(code, "This coupon has expired"), nil
	}

	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return reject(code, "This coupon has reached its usage limit"), nil
	}

	if p.CartSubtotal < c.MinimumOrderAmount {
		return reject(code, fmt.Sprintf("This coupon requires a minimum order of $%.2f", c.MinimumOrderAmount)), nil
	}

	if c.UsageLimitPerUser != nil && p.UserID != "" && c.TimesUsedBy(p.UserID) >= *c.UsageLimitPerUser {
		return reject(code, "You have already used this coupon the maximum number of times"), nil
	}

	if c.StoreOnly {
		for _, line := range p.Lines {
			if line.Source != "store" {
				return reject(code, "This coupon applies to store products only"), nil
			}
		}
	}

	applicable := applicableSubtotal(c, p.Lines)
	if applicable <= 0 {
		return reject(code, "This coupon does not apply to the items in your cart"), nil
	}

	productDiscount := productDiscount(c, applicable)

	var shippingDiscount float64
	if c.ApplyToShipping && p.ShippingCost > 0 {
		shippingDiscount = shippingDiscountFor(c, productDiscount, p.ShippingCost)
	}

	// Never discount past the order total; rescale both parts
	// proportionally so their sum lands exactly on it.
	orderTotal := domain.RoundCents(p.CartSubtotal + p.ShippingCost)
	if combined := productDiscount + shippingDiscount; combined > orderTotal && combined > 0 {
		scale := orderTotal / combined
		productDiscount *= scale
		shippingDiscount *= scale
	}

	product := domain.RoundCents(productDiscount)
	shippingD := domain.RoundCents(shippingDiscount)
	// Rounding each half up can overshoot the order total by a cent; shave
	// the excess off the product side.
	if over := domain.RoundCents(product + shippingD - orderTotal); over > 0 {
		if product >= over {
			product = domain.RoundCents(product - over)
		} else {
			shippingD = domain.RoundCents(shippingD - over)
		}
	}

	return domain.DiscountResult{
		Valid:            true,
		Code:             code,
		ProductDiscount:  product,
		ShippingDiscount: shippingD,
	}, nil
}

// Commit records a redemption after confirmed checkout completion. Returns
// false when the usage limit was exhausted concurrently since evaluation.
func (e *Engine) Commit(ctx context.Context, code, userID, orderID string) (bool, error) {
	return e.repo.CommitUsage(ctx, strings.ToUpper(strings.TrimSpace(code)), userID, orderID)
}

// applicableSubtotal narrows the cart subtotal to the lines the coupon's
// product scope covers.
func applicableSubtotal(c *domain.Coupon, lines []domain.NormalizedCartLine) float64 {
	var sum float64
	for _, line := range lines {
		if c.InScope(line.ProductID) {
			sum += line.LineSubtotal
		}
	}
	return sum
}

func productDiscount(c *domain.Coupon, applicable float64) float64 {
	switch c.DiscountType {
	case domain.DiscountPercentage:
		d := applicable * c.DiscountValue / 100
		if c.MaximumDiscount != nil && d > *c.MaximumDiscount {
			d = *c.MaximumDiscount
		}
		return d
	default:
		if c.DiscountValue > applicable {
			return applicable
		}
		return c.DiscountValue
	}
}

// shippingDiscountFor computes the shipping part: percentage coupons take the
// same percentage off shipping; fixed coupons spend whatever discount budget
// the product side left over, capped at the shipping cost.
func shippingDiscountFor(c *domain.Coupon, productDiscount, shippingCost float64) float64 {
	switch c.DiscountType {
	case domain.DiscountPercentage:
		return shippingCost * c.DiscountValue / 100
	default:
		remaining := c.DiscountValue - productDiscount
		if remaining <= 0 {
			return 0
		}
		if remaining > shippingCost {
			return shippingCost
		}
		return remaining
	}
}

func reject(code, message string) domain.DiscountResult {
	return domain.DiscountResult{
		Valid:   false,
		Code:    code,
		Message: message,
	}
}
