package binance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

type fakeExchange struct {
	depth      string
	depthCode  int
	ticker     string
	tickerCode int
	info       string
	delay      time.Duration
	hits       atomic.Int32
	lastLimit  atomic.Value
}

func (f *fakeExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/v3/depth":
		f.lastLimit.Store(r.URL.Query().Get("limit"))
		writeStatus(w, f.depthCode, f.depth)
	case "/api/v3/ticker/price":
		writeStatus(w, f.tickerCode, f.ticker)
	case "/api/v3/exchangeInfo":
		writeStatus(w, 0, f.info)
	default:
		http.NotFound(w, r)
	}
}

func writeStatus(w http.ResponseWriter, code int, body string) {
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

const (
	solDepth  = `{"lastUpdateId":1,"bids":[["100.00","2.5"],["99.50","1"]],"asks":[["100.10","3"],["101.00","0.25"]]}`
	solTicker = `{"symbol":"SOLUSDT","price":"100.05000000"}`
)

func newTestClient(t *testing.T, fx *fakeExchange, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(fx)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchOrderBook(t *testing.T) {
	fx := &fakeExchange{depth: solDepth, ticker: solTicker}
	c := newTestClient(t, fx, Config{DepthLimit: 1000})

	book, err := c.FetchOrderBook(context.Background(), "SOL")
	if err != nil {
		t.Fatalf("FetchOrderBook: %v", err)
	}

	if book.Symbol != "SOL" || book.Limit != 1000 {
		t.Errorf("book identity = %s/%d", book.Symbol, book.Limit)
	}
	if !book.ReferencePrice.Equal(decimal.RequireFromString("100.05")) {
		t.Errorf("reference = %s", book.ReferencePrice)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 2 {
		t.Fatalf("levels = %d/%d", len(book.Bids), len(book.Asks))
	}
	if !book.Bids[0].Quantity.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("bid[0] qty = %s", book.Bids[0].Quantity)
	}
	if !book.Asks[1].Price.Equal(decimal.RequireFromString("101")) {
		t.Errorf("ask[1] price = %s", book.Asks[1].Price)
	}
	if got, _ := fx.lastLimit.Load().(string); got != "1000" {
		t.Errorf("limit param = %q, want 1000", got)
	}
	if book.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{DepthLimit: 10000}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if c.depthLimit != MaxDepthLimit {
		t.Errorf("depthLimit = %d, want %d", c.depthLimit, MaxDepthLimit)
	}
	if c.timeout != DefaultTimeout {
		t.Errorf("timeout = %v", c.timeout)
	}
	if c.api.BaseURL != DefaultBaseURL {
		t.Errorf("base url = %s", c.api.BaseURL)
	}
}

func TestFetchOrderBookErrors(t *testing.T) {
	tests := []struct {
		name string
		fx   *fakeExchange
		cfg  Config
		want error
	}{
		{
			name: "http 429",
			fx:   &fakeExchange{depth: `{"code":-1003,"msg":"Too many requests"}`, depthCode: http.StatusTooManyRequests, ticker: solTicker},
			want: domain.ErrRateLimited,
		},
		{
			name: "http 418 ban",
			fx:   &fakeExchange{depth: solDepth, ticker: `{}`, tickerCode: http.StatusTeapot},
			want: domain.ErrRateLimited,
		},
		{
			name: "weight code without 429",
			fx:   &fakeExchange{depth: `{"code":-1003,"msg":"Too much request weight used"}`, depthCode: http.StatusBadRequest, ticker: solTicker},
			want: domain.ErrRateLimited,
		},
		{
			name: "invalid symbol",
			fx:   &fakeExchange{depth: `{"code":-1121,"msg":"Invalid symbol."}`, depthCode: http.StatusBadRequest, ticker: solTicker},
			want: domain.ErrNotTradable,
		},
		{
			name: "server error",
			fx:   &fakeExchange{depth: `<html>bad gateway</html>`, depthCode: http.StatusBadGateway, ticker: solTicker},
			want: domain.ErrNetwork,
		},
		{
			name: "unparsable quantity",
			fx:   &fakeExchange{depth: `{"lastUpdateId":1,"bids":[["100","lots"]],"asks":[]}`, ticker: solTicker},
			want: domain.ErrMalformedResponse,
		},
		{
			name: "zero reference price",
			fx:   &fakeExchange{depth: solDepth, ticker: `{"symbol":"SOLUSDT","price":"0.00000000"}`},
			want: domain.ErrMalformedResponse,
		},
		{
			name: "ticker for another pair",
			fx:   &fakeExchange{depth: solDepth, ticker: `{"symbol":"ADAUSDT","price":"1"}`},
			want: domain.ErrMalformedResponse,
		},
		{
			name: "slow exchange",
			fx:   &fakeExchange{depth: solDepth, ticker: solTicker, delay: 500 * time.Millisecond},
			cfg:  Config{Timeout: 50 * time.Millisecond},
			want: domain.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.fx, tt.cfg)
			_, err := c.FetchOrderBook(context.Background(), "SOL")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetchOrderBookUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.FetchOrderBook(context.Background(), "SOL")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
}

func TestTradablePairs(t *testing.T) {
	fx := &fakeExchange{info: `{"timezone":"UTC","serverTime":1,"symbols":[
		{"symbol":"SOLUSDT","status":"TRADING","baseAsset":"SOL","quoteAsset":"USDT"},
		{"symbol":"LUNAUSDT","status":"BREAK","baseAsset":"LUNA","quoteAsset":"USDT"},
		{"symbol":"SOLBTC","status":"TRADING","baseAsset":"SOL","quoteAsset":"BTC"},
		{"symbol":"ADAUSDT","status":"TRADING","baseAsset":"ADA","quoteAsset":"USDT"}
	]}`}
	c := newTestClient(t, fx, Config{})

	pairs, err := c.TradablePairs(context.Background())
	if err != nil {
		t.Fatalf("TradablePairs: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2: %+v", len(pairs), pairs)
	}
	if pairs[0].Pair != "SOLUSDT" || pairs[1].BaseAsset != "ADA" {
		t.Errorf("pairs = %+v", pairs)
	}
}
