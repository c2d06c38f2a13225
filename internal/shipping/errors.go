package shipping

// These constants mirror domain error codes to avoid circular imports.
// The caller maps them to HTTP status codes.
const (
	codeInvalid     = "invalid"
	codeExpired     = "expired"
	codeUnavailable = "unavailable"
)

// ShippingError represents a shipping-specific error with a code and message.
// It follows the domain.Error pattern for consistent status mapping.
type ShippingError struct {
	Code    string
	Message string
}

func (e *ShippingError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for status mapping.
func (e *ShippingError) ErrorCode() string {
	return e.Code
}

// ErrorMessage returns the user-facing message.
func (e *ShippingError) ErrorMessage() string {
	return e.Message
}

func newShippingError(code, message string) *ShippingError {
	return &ShippingError{Code: code, Message: message}
}

var (
	// ErrUnsupportedRegion is returned when a cart needs shipping but the
	// destination is outside the supported region.
	ErrUnsupportedRegion = newShippingError(codeUnavailable, "We currently ship physical items within the United States only")

	// ErrOptionExpired is returned when a previously quoted option no longer
	// resolves. The caller should re-quote and ask the buyer to reselect.
	ErrOptionExpired = newShippingError(codeExpired, "The selected shipping option is no longer available. Please choose again")

	// ErrNoSelection is returned when a selection carries no identifier.
	ErrNoSelection = newShippingError(codeInvalid, "A shipping option must be selected")
)
