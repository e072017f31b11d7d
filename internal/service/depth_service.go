// Package service orchestrates symbol validation, order book retrieval,
// aggregation and caching for a single depth request.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

// DefaultMaxDepth is the widest band a caller may request, in percent.
var DefaultMaxDepth = decimal.NewFromInt(50)

// SymbolValidator normalises and checks user-supplied symbols.
type SymbolValidator interface {
	Normalize(raw string) (domain.Symbol, error)
	Validate(ctx context.Context, raw string) (domain.Symbol, error)
}

// Aggregator reduces an order book to ranked clusters.
type Aggregator interface {
	Aggregate(book domain.OrderBook, depth domain.DepthPercent) domain.AnalysisResult
}

// DepthServiceConfig holds the request limits.
type DepthServiceConfig struct {
	MaxDepth decimal.Decimal
	// CacheTTL is only used to report when a fresh result will expire.
	CacheTTL time.Duration
}

// DepthService runs the analyse-or-serve-from-cache pipeline. It is safe for
// concurrent use; the only shared state lives in its collaborators.
type DepthService struct {
	validator  SymbolValidator
	fetcher    domain.OrderBookFetcher
	aggregator Aggregator
	cache      domain.ResultCache
	maxDepth   decimal.Decimal
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewDepthService creates a DepthService with all required dependencies.
func NewDepthService(
	validator SymbolValidator,
	fetcher domain.OrderBookFetcher,
	aggregator Aggregator,
	cache domain.ResultCache,
	cfg DepthServiceConfig,
	logger *slog.Logger,
) *DepthService {
	maxDepth := cfg.MaxDepth
	if !maxDepth.IsPositive() {
		maxDepth = DefaultMaxDepth
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &DepthService{
		validator:  validator,
		fetcher:    fetcher,
		aggregator: aggregator,
		cache:      cache,
		maxDepth:   maxDepth,
		cacheTTL:   ttl,
		logger:     logger.With(slog.String("component", "depth_service")),
	}
}

// Analyze answers a depth query for rawSymbol within rawDepth percent of the
// current price. Input problems are reported before any network call. Every
// returned error is a *UserError.
func (s *DepthService) Analyze(ctx context.Context, rawSymbol, rawDepth string) (domain.Report, error) {
	start := time.Now()
	log := s.logger.With(slog.String("request_id", uuid.NewString()))

	depth, err := domain.ParseDepthPercent(rawDepth, s.maxDepth)
	if err != nil {
		return domain.Report{}, s.fail(ctx, log, "parse depth", err)
	}
	symbol, err := s.validator.Normalize(rawSymbol)
	if err != nil {
		return domain.Report{}, s.fail(ctx, log, "normalize symbol", err)
	}
	log = log.With(slog.String("symbol", symbol.String()), slog.String("depth", depth.Key()))

	result, expiresAt, found, err := s.cache.Get(ctx, symbol, depth)
	if err != nil {
		log.WarnContext(ctx, "depth_service: cache get failed", slog.String("error", err.Error()))
	}
	if err == nil && found {
		log.InfoContext(ctx, "depth_service: served from cache",
			slog.Time("expires_at", expiresAt),
		)
		return domain.Report{Result: result, Cached: true, ExpiresAt: expiresAt}, nil
	}

	if _, err := s.validator.Validate(ctx, symbol.String()); err != nil {
		return domain.Report{}, s.fail(ctx, log, "validate symbol", err)
	}

	book, err := s.fetcher.FetchOrderBook(ctx, symbol)
	if err != nil {
		return domain.Report{}, s.fail(ctx, log, "fetch order book", err)
	}

	result = s.aggregator.Aggregate(book, depth)

	if err := s.cache.Put(ctx, symbol, depth, result); err != nil {
		log.WarnContext(ctx, "depth_service: cache put failed", slog.String("error", err.Error()))
	}

	log.InfoContext(ctx, "depth_service: analysed",
		slog.Int("bid_levels", len(book.Bids)),
		slog.Int("ask_levels", len(book.Asks)),
		slog.Any("warnings", result.Warnings),
		slog.Duration("elapsed", time.Since(start)),
	)

	return domain.Report{
		Result:    result,
		Cached:    false,
		ExpiresAt: result.ComputedAt.Add(s.cacheTTL),
	}, nil
}

// ValidateSymbol checks that raw names a tradable, supported asset. The bot
// calls it before offering depth choices.
func (s *DepthService) ValidateSymbol(ctx context.Context, raw string) (domain.Symbol, error) {
	sym, err := s.validator.Validate(ctx, raw)
	if err != nil {
		return "", s.fail(ctx, s.logger, "validate symbol", err)
	}
	return sym, nil
}

// MaxDepth returns the widest accepted band in percent.
func (s *DepthService) MaxDepth() decimal.Decimal {
	return s.maxDepth
}

func (s *DepthService) fail(ctx context.Context, log *slog.Logger, op string, err error) error {
	ue := toUserError(fmt.Errorf("depth_service: %s: %w", op, err))
	if ue.Input() {
		log.InfoContext(ctx, "depth_service: rejected request",
			slog.String("code", ue.Code),
			slog.String("error", err.Error()),
		)
	} else {
		log.ErrorContext(ctx, "depth_service: request failed",
			slog.String("op", op),
			slog.String("code", ue.Code),
			slog.String("error", err.Error()),
		)
	}
	return ue
}
