package domain

import (
	"context"
	"time"
)

// ResultCache memoises analysis results per (symbol, depth) for a short TTL.
// Implementations must be safe for concurrent use.
type ResultCache interface {
	// Get returns the cached result and its expiry. found is false on a miss
	// or after expiry.
	Get(ctx context.Context, symbol Symbol, depth DepthPercent) (result AnalysisResult, expiresAt time.Time, found bool, err error)
	// Put stores result, replacing any previous entry for the same key.
	Put(ctx context.Context, symbol Symbol, depth DepthPercent, result AnalysisResult) error
}

// CacheKey builds the key shared by every ResultCache backend.
func CacheKey(symbol Symbol, depth DepthPercent) string {
	return "depth:" + string(symbol) + ":" + depth.Key()
}
