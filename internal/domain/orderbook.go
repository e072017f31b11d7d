package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteAsset is the only quote currency the bot analyses.
const QuoteAsset = "USDT"

// Symbol is an uppercase base-asset ticker such as "SOL". The quote asset is
// always USDT and is implied.
type Symbol string

// Pair returns the exchange trading pair for the symbol, e.g. "SOLUSDT".
func (s Symbol) Pair() string {
	return string(s) + QuoteAsset
}

func (s Symbol) String() string {
	return string(s)
}

// Side identifies which half of the book a level belongs to.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// PriceLevel is a single price+quantity entry in an orderbook. Quantity is
// denominated in base-asset units.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderBook is a raw snapshot of one trading pair. Bids are sorted by
// descending price and asks by ascending price, as returned by the exchange.
type OrderBook struct {
	Symbol         Symbol
	Bids           []PriceLevel
	Asks           []PriceLevel
	ReferencePrice decimal.Decimal
	// Limit is the per-side depth requested from the exchange. A side that
	// holds exactly Limit levels may have been cut short.
	Limit     int
	FetchedAt time.Time
}

// BidsExhausted reports whether the bid side filled the requested limit.
func (b OrderBook) BidsExhausted() bool {
	return b.Limit > 0 && len(b.Bids) >= b.Limit
}

// AsksExhausted reports whether the ask side filled the requested limit.
func (b OrderBook) AsksExhausted() bool {
	return b.Limit > 0 && len(b.Asks) >= b.Limit
}

// AggregatedLevel is one ranked cluster of resting orders inside the band.
type AggregatedLevel struct {
	Side   Side            `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	// Notional is the quote-asset value of the cluster (sum of price*quantity).
	Notional decimal.Decimal `json:"notional"`
	// Orders is the number of raw exchange levels merged into this cluster.
	Orders int `json:"orders"`
}

// Warning codes attached to an AnalysisResult when the book only partially
// covers the requested band.
const (
	WarningBidsTruncated = "bids_truncated"
	WarningAsksTruncated = "asks_truncated"
)

// AnalysisResult is the immutable output of one depth analysis.
type AnalysisResult struct {
	Symbol         Symbol            `json:"symbol"`
	Depth          DepthPercent      `json:"depth"`
	ReferencePrice decimal.Decimal   `json:"reference_price"`
	LowerBound     decimal.Decimal   `json:"lower_bound"`
	UpperBound     decimal.Decimal   `json:"upper_bound"`
	Bids           []AggregatedLevel `json:"bids"`
	Asks           []AggregatedLevel `json:"asks"`
	BidVolume      decimal.Decimal   `json:"bid_volume"`
	AskVolume      decimal.Decimal   `json:"ask_volume"`
	Warnings       []string          `json:"warnings,omitempty"`
	ComputedAt     time.Time         `json:"computed_at"`
}

// Report is what the orchestrator hands to the presentation layer.
type Report struct {
	Result AnalysisResult `json:"result"`
	// Cached is true when the result was served from the result cache.
	Cached    bool      `json:"cached"`
	ExpiresAt time.Time `json:"expires_at"`
}
