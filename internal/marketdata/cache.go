package marketdata

import (
	"context"
	"strings"
	"time"

	"github.com/rzzdr/options-engine/internal/store"
	"github.com/rzzdr/options-engine/pkg/models"
)

// CachedProvider serves repeated requests for the same range from memory
type CachedProvider struct {
	next  Provider
	cache *store.InMemorySeriesStore
}

// NewCachedProvider wraps next with a cache of the given TTL and size
func NewCachedProvider(next Provider, ttl time.Duration, maxEntries int) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: store.NewInMemorySeriesStore(ttl, maxEntries),
	}
}

// Fetch implements Provider. Errors are not cached.
func (p *CachedProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, interval string) (models.PriceSeries, error) {
	if interval == "" {
		interval = DefaultInterval
	}
	key := strings.Join([]string{
		strings.ToUpper(strings.TrimSpace(symbol)),
		interval,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	}, "|")

	if s, ok := p.cache.Get(key); ok {
		return s, nil
	}

	s, err := p.next.Fetch(ctx, symbol, start, end, interval)
	if err != nil {
		return models.PriceSeries{}, err
	}
	p.cache.Put(key, s)
	return s, nil
}
