// Package binance fetches public spot market data from the Binance REST API.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	exchange "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

const (
	// DefaultBaseURL is the public spot REST endpoint.
	DefaultBaseURL = "https://api.binance.com"
	// MaxDepthLimit is the largest order book depth Binance serves.
	MaxDepthLimit = 5000
	// DefaultTimeout bounds each exchange call.
	DefaultTimeout = 10 * time.Second
)

// Config holds the public-endpoint settings. No API keys are needed.
type Config struct {
	BaseURL    string
	DepthLimit int
	Timeout    time.Duration
}

// Client is an OrderBookFetcher and MarketSource over the Binance spot API.
type Client struct {
	api        *exchange.Client
	depthLimit int
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

var (
	_ domain.OrderBookFetcher = (*Client)(nil)
	_ domain.MarketSource     = (*Client)(nil)
)

// NewClient creates a Client. Zero-valued config fields fall back to the
// package defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DepthLimit <= 0 || cfg.DepthLimit > MaxDepthLimit {
		cfg.DepthLimit = MaxDepthLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	api := exchange.NewClient("", "")
	api.BaseURL = cfg.BaseURL
	api.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &statusTransport{base: http.DefaultTransport},
	}

	return &Client{
		api:        api,
		depthLimit: cfg.DepthLimit,
		timeout:    cfg.Timeout,
		logger:     logger.With(slog.String("component", "binance")),
		now:        time.Now,
	}
}

// FetchOrderBook loads the order book and the last traded price of the
// symbol's USDT pair. Both calls run concurrently under one timeout.
func (c *Client) FetchOrderBook(ctx context.Context, symbol domain.Symbol) (domain.OrderBook, error) {
	pair := symbol.Pair()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		depth  *exchange.DepthResponse
		prices []*exchange.SymbolPrice
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := c.api.NewDepthService().Symbol(pair).Limit(c.depthLimit).Do(gctx)
		if err != nil {
			return classify("depth "+pair, err)
		}
		depth = resp
		return nil
	})
	g.Go(func() error {
		resp, err := c.api.NewListPricesService().Symbol(pair).Do(gctx)
		if err != nil {
			return classify("ticker "+pair, err)
		}
		prices = resp
		return nil
	})
	if err := g.Wait(); err != nil {
		c.logger.WarnContext(ctx, "binance: fetch order book failed",
			slog.String("pair", pair),
			slog.String("error", err.Error()),
		)
		return domain.OrderBook{}, err
	}

	ref, err := lastPrice(pair, prices)
	if err != nil {
		return domain.OrderBook{}, err
	}
	bids, err := toLevels(depth.Bids)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance: depth %s: bids: %w", pair, err)
	}
	asks, err := toLevels(depth.Asks)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("binance: depth %s: asks: %w", pair, err)
	}

	c.logger.DebugContext(ctx, "binance: order book fetched",
		slog.String("pair", pair),
		slog.Int("bids", len(bids)),
		slog.Int("asks", len(asks)),
		slog.String("last_price", ref.String()),
	)

	return domain.OrderBook{
		Symbol:         symbol,
		Bids:           bids,
		Asks:           asks,
		ReferencePrice: ref,
		Limit:          c.depthLimit,
		FetchedAt:      c.now().UTC(),
	}, nil
}

// TradablePairs lists USDT-quoted pairs whose status is TRADING.
func (c *Client) TradablePairs(ctx context.Context) ([]domain.TradingPair, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, classify("exchange info", err)
	}

	pairs := make([]domain.TradingPair, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.QuoteAsset != domain.QuoteAsset || s.Status != domain.TradingStatusTrading {
			continue
		}
		pairs = append(pairs, domain.TradingPair{
			Pair:       s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Status:     s.Status,
		})
	}
	return pairs, nil
}

func lastPrice(pair string, prices []*exchange.SymbolPrice) (decimal.Decimal, error) {
	for _, p := range prices {
		if p == nil || p.Symbol != pair {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return decimal.Zero, fmt.Errorf("binance: ticker %s: price %q: %w", pair, p.Price, domain.ErrMalformedResponse)
		}
		if !price.IsPositive() {
			return decimal.Zero, fmt.Errorf("binance: ticker %s: non-positive price %s: %w", pair, p.Price, domain.ErrMalformedResponse)
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("binance: ticker %s: pair missing from response: %w", pair, domain.ErrMalformedResponse)
}

func toLevels(raw []common.PriceLevel) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for i, r := range raw {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("level %d price %q: %w", i, r.Price, domain.ErrMalformedResponse)
		}
		qty, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("level %d quantity %q: %w", i, r.Quantity, domain.ErrMalformedResponse)
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}
