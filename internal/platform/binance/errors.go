package binance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/adshao/go-binance/v2/common"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

// Binance API error codes the fetcher reacts to.
const (
	codeTooManyRequests = -1003
	codeInvalidSymbol   = -1121
)

// statusTransport turns rate-limit responses into transport errors so they
// are recognised before the client tries to parse the body. 418 is the
// status Binance uses once an IP has been banned for ignoring 429s.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusTeapot:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		retryAfter := resp.Header.Get("Retry-After")
		return nil, fmt.Errorf("%w: HTTP %d, retry-after %q", domain.ErrRateLimited, resp.StatusCode, retryAfter)
	}
	return resp, nil
}

// classify maps a go-binance error onto the domain error taxonomy.
func classify(op string, err error) error {
	var apiErr *common.APIError
	var netErr net.Error
	var urlErr *url.Error

	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return fmt.Errorf("binance: %s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("binance: %s: %w: %w", op, domain.ErrTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("binance: %s: %w: %w", op, domain.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("binance: %s: %w", op, err)
	case errors.As(err, &apiErr):
		switch apiErr.Code {
		case codeTooManyRequests:
			return fmt.Errorf("binance: %s: %w: %w", op, domain.ErrRateLimited, err)
		case codeInvalidSymbol:
			return fmt.Errorf("binance: %s: %w: %w", op, domain.ErrNotTradable, err)
		default:
			return fmt.Errorf("binance: %s: %w: %w", op, domain.ErrNetwork, err)
		}
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return fmt.Errorf("binance: %s: %w: %w", op, domain.ErrNetwork, err)
	default:
		return fmt.Errorf("binance: %s: %w: %w", op, domain.ErrMalformedResponse, err)
	}
}
