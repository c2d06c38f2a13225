package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/meridian/internal/domain"
)

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", domain.ErrorCode(nil))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(domain.Invalid("op", "bad input")))
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(errors.New("plain error")))

	wrapped := fmt.Errorf("outer: %w", domain.NotFound("op", "coupon", "CODE10"))
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(wrapped))
}

func TestErrorMessage_HidesInternalDetails(t *testing.T) {
	internal := domain.Internal(errors.New("pq: connection refused"), "order.create", "failed to insert order")

	msg := domain.ErrorMessage(internal)

	assert.NotContains(t, msg, "connection refused")
	assert.Contains(t, msg, "internal error")
}

func TestErrorMessage_SurfacesUserFacingMessages(t *testing.T) {
	err := domain.Invalid("cart.normalize", "cart is empty")

	assert.Equal(t, "cart is empty", domain.ErrorMessage(err))
}

func TestWrapError(t *testing.T) {
	cause := errors.New("timeout")
	err := domain.WrapError(cause, domain.EUNAVAILABLE, "shipping.list_zones", "zones unavailable")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.Equal(t, "shipping.list_zones", domain.ErrorOp(err))

	assert.Nil(t, domain.WrapError(nil, domain.EINTERNAL, "op", "msg"))
}

func TestIsCode(t *testing.T) {
	err := domain.Conflict("order.create", "duplicate payment reference")

	assert.True(t, domain.IsCode(err, domain.ECONFLICT))
	assert.False(t, domain.IsCode(err, domain.ENOTFOUND))
	assert.False(t, domain.IsCode(nil, domain.ECONFLICT))
}
