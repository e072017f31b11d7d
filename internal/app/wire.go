package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthbot/internal/cache/memory"
	"github.com/alanyoungcy/depthbot/internal/cache/redis"
	"github.com/alanyoungcy/depthbot/internal/config"
	"github.com/alanyoungcy/depthbot/internal/depth"
	"github.com/alanyoungcy/depthbot/internal/domain"
	"github.com/alanyoungcy/depthbot/internal/market"
	"github.com/alanyoungcy/depthbot/internal/platform/binance"
	"github.com/alanyoungcy/depthbot/internal/service"
)

// Dependencies bundles every component the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Exchange
	Exchange *binance.Client
	Registry *market.Registry

	// Analysis
	Validator  *market.Validator
	Aggregator *depth.Aggregator
	Service    *service.DepthService

	// Cache is the active result cache. MemoryCache is set only for the
	// in-process backend, which needs a sweeper goroutine.
	Cache       domain.ResultCache
	MemoryCache *memory.Cache
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// ── Exchange ──
	deps.Exchange = binance.NewClient(binance.Config{
		BaseURL:    cfg.Binance.BaseURL,
		DepthLimit: cfg.Binance.DepthLimit,
		Timeout:    cfg.Binance.Timeout.Duration,
	}, logger)
	deps.Registry = market.NewRegistry(deps.Exchange, logger)

	// ── Cache ──
	switch strings.ToLower(cfg.Cache.Backend) {
	case "redis":
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			MaxRetries:  cfg.Redis.MaxRetries,
			DialTimeout: cfg.Redis.DialTimeout.Duration,
			TLSEnabled:  cfg.Redis.TLSEnabled,
			KeyPrefix:   cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Cache = redis.NewAnalysisCache(redisClient, cfg.Cache.TTL.Duration)
		logger.InfoContext(ctx, "wire: result cache on redis", slog.String("addr", cfg.Redis.Addr))
	default:
		deps.MemoryCache = memory.New(memory.Config{
			TTL:        cfg.Cache.TTL.Duration,
			MaxEntries: cfg.Cache.MaxEntries,
		})
		deps.Cache = deps.MemoryCache
		logger.InfoContext(ctx, "wire: result cache in memory", slog.Int("max_entries", cfg.Cache.MaxEntries))
	}

	// ── Analysis ──
	deps.Validator = market.NewValidator(deps.Registry, cfg.Analysis.ExcludedAssets)
	deps.Aggregator = depth.NewAggregator(depth.Config{
		TopN:       cfg.Analysis.TopN,
		PriceScale: depth.Scale(int32(cfg.Analysis.PriceScale)),
	})
	deps.Service = service.NewDepthService(
		deps.Validator,
		deps.Exchange,
		deps.Aggregator,
		deps.Cache,
		service.DepthServiceConfig{
			MaxDepth: decimal.NewFromInt(int64(cfg.Analysis.MaxDepth)),
			CacheTTL: cfg.Cache.TTL.Duration,
		},
		logger,
	)

	return deps, cleanup, nil
}

// depthOptions renders the configured depth buttons as labels.
func depthOptions(opts []float64) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, strconv.FormatFloat(o, 'f', -1, 64))
	}
	return out
}
