// Package market validates user-supplied symbols against the exchange's list
// of tradable USDT pairs.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

// DefaultRefreshInterval is how often the registry reloads exchange metadata.
const DefaultRefreshInterval = 5 * time.Minute

// Registry holds the set of pairs currently open for trading. It is safe for
// concurrent use.
type Registry struct {
	source domain.MarketSource
	logger *slog.Logger

	mu        sync.RWMutex
	pairs     map[string]domain.TradingPair
	updatedAt time.Time

	// refreshMu serialises refreshes so a burst of lookups on an empty
	// registry triggers a single exchange call.
	refreshMu sync.Mutex
}

// NewRegistry creates an empty Registry backed by source.
func NewRegistry(source domain.MarketSource, logger *slog.Logger) *Registry {
	return &Registry{
		source: source,
		logger: logger.With(slog.String("component", "market_registry")),
		pairs:  make(map[string]domain.TradingPair),
	}
}

// Refresh replaces the whole set with the pairs the source reports as
// tradable. On error the previous set is kept.
func (r *Registry) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()
	return r.refreshLocked(ctx)
}

func (r *Registry) refreshLocked(ctx context.Context) error {
	pairs, err := r.source.TradablePairs(ctx)
	if err != nil {
		return fmt.Errorf("market: refresh: %w", err)
	}

	next := make(map[string]domain.TradingPair, len(pairs))
	for _, p := range pairs {
		if p.Status != domain.TradingStatusTrading || p.QuoteAsset != domain.QuoteAsset {
			continue
		}
		next[p.Pair] = p
	}

	r.mu.Lock()
	r.pairs = next
	r.updatedAt = time.Now()
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "market: registry refreshed", slog.Int("pairs", len(next)))
	return nil
}

// Run refreshes the registry every interval until ctx is cancelled. A failed
// refresh is logged and retried on the next tick.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
		r.logger.WarnContext(ctx, "market: initial refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "market: refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Lookup returns the pair if it is currently tradable. An empty registry is
// loaded synchronously first.
func (r *Registry) Lookup(ctx context.Context, pair string) (domain.TradingPair, bool, error) {
	if r.Len() == 0 {
		if err := r.loadOnce(ctx); err != nil {
			return domain.TradingPair{}, false, err
		}
	}

	r.mu.RLock()
	p, ok := r.pairs[pair]
	r.mu.RUnlock()
	return p, ok, nil
}

// loadOnce refreshes unless a concurrent caller already filled the registry
// while this one waited.
func (r *Registry) loadOnce(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()
	if r.Len() > 0 {
		return nil
	}
	return r.refreshLocked(ctx)
}

// Len returns the number of tradable pairs held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}

// UpdatedAt returns the time of the last successful refresh.
func (r *Registry) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}
