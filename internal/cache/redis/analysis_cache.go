package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

// DefaultTTL is how long an analysis result stays servable.
const DefaultTTL = 60 * time.Second

// AnalysisCache implements domain.ResultCache. Each result is a JSON string
// stored at "depth:{symbol}:{depth}" with a server-side expiry, so every
// instance pointing at the same Redis shares the same view.
type AnalysisCache struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time
}

var _ domain.ResultCache = (*AnalysisCache)(nil)

// NewAnalysisCache creates an AnalysisCache. A non-positive ttl uses DefaultTTL.
func NewAnalysisCache(c *Client, ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AnalysisCache{client: c, ttl: ttl, now: time.Now}
}

// Get reads the result and its remaining TTL in one round trip.
func (ac *AnalysisCache) Get(ctx context.Context, symbol domain.Symbol, depth domain.DepthPercent) (domain.AnalysisResult, time.Time, bool, error) {
	key := ac.client.Key(domain.CacheKey(symbol, depth))
	rdb := ac.client.Underlying()

	pipe := rdb.TxPipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.AnalysisResult{}, time.Time{}, false, fmt.Errorf("redis: get analysis %s: %w", key, err)
	}

	data, err := getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AnalysisResult{}, time.Time{}, false, nil
	}
	if err != nil {
		return domain.AnalysisResult{}, time.Time{}, false, fmt.Errorf("redis: get analysis %s: %w", key, err)
	}

	remaining := ttlCmd.Val()
	if remaining <= 0 {
		// Expired between GET and PTTL, or written without an expiry.
		return domain.AnalysisResult{}, time.Time{}, false, nil
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.AnalysisResult{}, time.Time{}, false, fmt.Errorf("redis: decode analysis %s: %w", key, err)
	}
	return result, ac.now().Add(remaining), true, nil
}

// Put stores result with a fresh TTL, replacing any previous value.
func (ac *AnalysisCache) Put(ctx context.Context, symbol domain.Symbol, depth domain.DepthPercent, result domain.AnalysisResult) error {
	key := ac.client.Key(domain.CacheKey(symbol, depth))

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("redis: encode analysis %s: %w", key, err)
	}
	if err := ac.client.Underlying().Set(ctx, key, data, ac.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set analysis %s: %w", key, err)
	}
	return nil
}
