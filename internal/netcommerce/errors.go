package netcommerce

import "errors"

var (
	// ErrMissingCallbackField indicates one of the required callback fields was absent.
	ErrMissingCallbackField = errors.New("netcommerce: missing callback field")
	// ErrSignatureMismatch indicates the callback signature did not match the recomputed one.
	ErrSignatureMismatch = errors.New("netcommerce: signature mismatch")
	// ErrUnsupportedCurrency indicates the order currency has no NetCommerce numeric code.
	ErrUnsupportedCurrency = errors.New("netcommerce: unsupported currency")
	// ErrMalformedOrderReference indicates txtIndex does not start with a valid order id.
	ErrMalformedOrderReference = errors.New("netcommerce: malformed order reference")
)

// Reason returns a stable label for err suitable for metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingCallbackField):
		return "missing_fields"
	case errors.Is(err, ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, ErrUnsupportedCurrency):
		return "unsupported_currency"
	case errors.Is(err, ErrMalformedOrderReference):
		return "malformed_order_reference"
	default:
		return "error"
	}
}
