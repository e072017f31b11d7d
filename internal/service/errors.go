package service

import (
	"errors"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

// User-facing error codes.
const (
	CodeInvalidFormat       = "invalid_format"
	CodeUnsupportedAsset    = "unsupported_asset"
	CodeNotTradable         = "not_tradable"
	CodeInvalidDepth        = "invalid_depth"
	CodeRateLimited         = "rate_limited"
	CodeTimeout             = "timeout"
	CodeExchangeUnavailable = "exchange_unavailable"
	CodeInternal            = "internal"
)

// UserError is an error whose Message is safe to show to an end user. Err
// keeps the underlying cause for logs and errors.Is.
type UserError struct {
	Code    string
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return e.Code + ": " + e.Message + ": " + e.Err.Error()
}

func (e *UserError) Unwrap() error { return e.Err }

// Input reports whether the failure was caused by the request rather than by
// the exchange or the bot.
func (e *UserError) Input() bool {
	switch e.Code {
	case CodeInvalidFormat, CodeUnsupportedAsset, CodeNotTradable, CodeInvalidDepth:
		return true
	}
	return false
}

// toUserError translates a pipeline error into a UserError. Messages never
// include transport details.
func toUserError(err error) *UserError {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue
	}

	switch {
	case errors.Is(err, domain.ErrInvalidFormat):
		return &UserError{Code: CodeInvalidFormat, Message: "Symbols are letters and digits only, e.g. SOL or PEPE.", Err: err}
	case errors.Is(err, domain.ErrUnsupportedAsset):
		return &UserError{Code: CodeUnsupportedAsset, Message: "This asset is not supported. Pick another coin.", Err: err}
	case errors.Is(err, domain.ErrNotTradable):
		return &UserError{Code: CodeNotTradable, Message: "No active USDT market for this coin on Binance.", Err: err}
	case errors.Is(err, domain.ErrInvalidDepth):
		return &UserError{Code: CodeInvalidDepth, Message: "Depth must be a percentage greater than 0, e.g. 5.", Err: err}
	case errors.Is(err, domain.ErrRateLimited):
		return &UserError{Code: CodeRateLimited, Message: "The exchange is throttling requests. Try again in a minute.", Err: err}
	case errors.Is(err, domain.ErrTimeout):
		return &UserError{Code: CodeTimeout, Message: "The exchange took too long to answer. Try again later.", Err: err}
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrMalformedResponse):
		return &UserError{Code: CodeExchangeUnavailable, Message: "The exchange is unavailable right now. Try again later.", Err: err}
	default:
		return &UserError{Code: CodeInternal, Message: "Something went wrong. Try again later.", Err: err}
	}
}
