package domain

import "errors"

// Request-input errors.
var (
	ErrInvalidFormat    = errors.New("invalid symbol format")
	ErrUnsupportedAsset = errors.New("unsupported asset")
	ErrNotTradable      = errors.New("not tradable")
	ErrInvalidDepth     = errors.New("invalid depth")
)

// Exchange-interaction errors.
var (
	ErrNetwork           = errors.New("network error")
	ErrTimeout           = errors.New("timeout")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
)

// IsInputError reports whether err was caused by the caller's input rather
// than by the exchange.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrUnsupportedAsset) ||
		errors.Is(err, ErrNotTradable) ||
		errors.Is(err, ErrInvalidDepth)
}
