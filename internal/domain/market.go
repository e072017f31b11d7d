package domain

import "context"

// TradingStatusTrading is the exchange status of a pair open for trading.
const TradingStatusTrading = "TRADING"

// TradingPair is one entry of the exchange market metadata.
type TradingPair struct {
	Pair       string
	BaseAsset  string
	QuoteAsset string
	Status     string
}

// MarketSource lists the exchange's currently tradable quote-USDT pairs.
type MarketSource interface {
	TradablePairs(ctx context.Context) ([]TradingPair, error)
}

// OrderBookFetcher retrieves a fresh order book snapshot, including the
// reference price used to anchor the depth band.
type OrderBookFetcher interface {
	FetchOrderBook(ctx context.Context, symbol Symbol) (OrderBook, error)
}
