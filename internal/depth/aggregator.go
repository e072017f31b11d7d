// Package depth turns a raw order book into ranked volume clusters inside a
// percentage band around the reference price.
package depth

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

// Config controls clustering and ranking.
type Config struct {
	// TopN is the number of clusters reported per side.
	TopN int
	// PriceScale is the number of decimal places prices are rounded to
	// before grouping. Levels that collapse to the same bucket are merged.
	// Nil uses DefaultPriceScale; 0 buckets by whole units.
	PriceScale *int32
}

// DefaultPriceScale keeps exchange tick sizes of every listed USDT pair intact.
const DefaultPriceScale int32 = 8

// Aggregator is stateless and safe for concurrent use.
type Aggregator struct {
	topN       int
	priceScale int32
	now        func() time.Time
}

// Scale returns a PriceScale value for Config.
func Scale(n int32) *int32 { return &n }

// NewAggregator creates an Aggregator. A non-positive TopN falls back to 10
// and a negative PriceScale to DefaultPriceScale.
func NewAggregator(cfg Config) *Aggregator {
	topN := cfg.TopN
	if topN <= 0 {
		topN = 10
	}
	scale := DefaultPriceScale
	if cfg.PriceScale != nil && *cfg.PriceScale >= 0 {
		scale = *cfg.PriceScale
	}
	return &Aggregator{
		topN:       topN,
		priceScale: scale,
		now:        time.Now,
	}
}

// Bounds returns the lower and upper prices of the band.
func Bounds(ref decimal.Decimal, depth domain.DepthPercent) (lower, upper decimal.Decimal) {
	f := depth.Fraction()
	lower = ref.Mul(decimal.NewFromInt(1).Sub(f))
	upper = ref.Mul(decimal.NewFromInt(1).Add(f))
	return lower, upper
}

// Aggregate filters the book to the band, merges levels into clusters and
// ranks each side by volume. It never fails: an empty side yields an empty
// slice and partial coverage is reported through Warnings.
func (a *Aggregator) Aggregate(book domain.OrderBook, depth domain.DepthPercent) domain.AnalysisResult {
	ref := book.ReferencePrice
	lower, upper := Bounds(ref, depth)

	bids := inBand(book.Bids, func(p decimal.Decimal) bool { return p.GreaterThanOrEqual(lower) })
	asks := inBand(book.Asks, func(p decimal.Decimal) bool { return p.LessThanOrEqual(upper) })

	bidClusters := a.cluster(bids, domain.SideBid)
	askClusters := a.cluster(asks, domain.SideAsk)

	result := domain.AnalysisResult{
		Symbol:         book.Symbol,
		Depth:          depth,
		ReferencePrice: ref,
		LowerBound:     lower,
		UpperBound:     upper,
		BidVolume:      totalVolume(bidClusters),
		AskVolume:      totalVolume(askClusters),
		Bids:           a.rank(bidClusters, ref),
		Asks:           a.rank(askClusters, ref),
		ComputedAt:     a.now().UTC(),
	}

	// The deepest fetched level still inside the band means the band may
	// extend past what the exchange returned.
	if book.BidsExhausted() && len(bids) == len(book.Bids) {
		result.Warnings = append(result.Warnings, domain.WarningBidsTruncated)
	}
	if book.AsksExhausted() && len(asks) == len(book.Asks) {
		result.Warnings = append(result.Warnings, domain.WarningAsksTruncated)
	}

	return result
}

func inBand(levels []domain.PriceLevel, keep func(decimal.Decimal) bool) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		if keep(lvl.Price) {
			out = append(out, lvl)
		}
	}
	return out
}

// cluster merges levels sharing a price bucket. Buckets are rounded toward the
// reference price (bids up, asks down) so a bucket never leaves the band.
// Output order follows first appearance of each bucket.
func (a *Aggregator) cluster(levels []domain.PriceLevel, side domain.Side) []domain.AggregatedLevel {
	index := make(map[string]int, len(levels))
	out := make([]domain.AggregatedLevel, 0, len(levels))

	for _, lvl := range levels {
		if lvl.Quantity.IsZero() {
			continue
		}
		bucket := lvl.Price.Truncate(a.priceScale)
		if side == domain.SideBid {
			bucket = lvl.Price.RoundCeil(a.priceScale)
		}
		key := bucket.String()

		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, domain.AggregatedLevel{
				Side:     side,
				Price:    bucket,
				Volume:   decimal.Zero,
				Notional: decimal.Zero,
			})
			i = len(out) - 1
		}
		c := &out[i]
		c.Volume = c.Volume.Add(lvl.Quantity)
		c.Notional = c.Notional.Add(lvl.Price.Mul(lvl.Quantity))
		c.Orders++
	}
	return out
}

// rank sorts clusters by descending volume, breaking ties by distance to the
// reference price and then by price, and keeps the top N.
func (a *Aggregator) rank(clusters []domain.AggregatedLevel, ref decimal.Decimal) []domain.AggregatedLevel {
	ranked := make([]domain.AggregatedLevel, len(clusters))
	copy(ranked, clusters)

	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].Volume.Cmp(ranked[j].Volume); c != 0 {
			return c > 0
		}
		di := ranked[i].Price.Sub(ref).Abs()
		dj := ranked[j].Price.Sub(ref).Abs()
		if c := di.Cmp(dj); c != 0 {
			return c < 0
		}
		if ranked[i].Side == domain.SideBid {
			return ranked[i].Price.GreaterThan(ranked[j].Price)
		}
		return ranked[i].Price.LessThan(ranked[j].Price)
	})

	if len(ranked) > a.topN {
		ranked = ranked[:a.topN]
	}
	return ranked
}

func totalVolume(clusters []domain.AggregatedLevel) decimal.Decimal {
	total := decimal.Zero
	for _, c := range clusters {
		total = total.Add(c.Volume)
	}
	return total
}
