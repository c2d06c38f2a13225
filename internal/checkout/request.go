package checkout

import (
	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/meridian/internal/address"
	"github.com/dukerupert/meridian/internal/domain"
	"github.com/dukerupert/meridian/internal/shipping"
)

// QuoteRequest is the boundary input for pricing a cart and listing shipping
// options. Malformed shapes are rejected here, before the pricing core.
type QuoteRequest struct {
	Lines           []domain.CartLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress *address.Address         `json:"shippingAddress,omitempty"`
	Coordinates     *address.Coordinates     `json:"coordinates,omitempty"`
}

// CheckoutRequest is the boundary input for starting payment on a quoted
// cart.
type CheckoutRequest struct {
	Lines           []domain.CartLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress *address.Address         `json:"shippingAddress,omitempty"`
	Coordinates     *address.Coordinates     `json:"coordinates,omitempty"`
	Shipping        shipping.Selection       `json:"shipping"`
	CouponCode      string                   `json:"couponCode,omitempty"`
	CustomerEmail   string                   `json:"customerEmail" validate:"required,email"`
	UserID          string                   `json:"userId,omitempty"`
}

// CommitRequest is the envelope BeginPayment freezes into the payment-intent
// metadata: the cart lines plus the quoted shipping selection, discount, and
// totals. The commit step replays it verbatim so the persisted order records
// exactly what the buyer was charged, regardless of coupon or rate edits made
// after payment.
type CommitRequest struct {
	Lines    []domain.CartLineRequest `json:"lines" validate:"required,min=1,dive"`
	UserID   string                   `json:"userId,omitempty"`
	Email    string                   `json:"email,omitempty"`
	Shipping domain.ShippingSelection `json:"shipping"`
	Discount domain.DiscountResult    `json:"discount"`
	Totals   domain.OrderTotals       `json:"totals"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRequest runs struct validation and converts failures to EINVALID.
func validateRequest(op string, req any) error {
	if err := validate.Struct(req); err != nil {
		return domain.WrapError(err, domain.EINVALID, op, "request failed validation")
	}
	return nil
}
