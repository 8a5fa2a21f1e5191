// Package store keeps recently fetched price histories in memory.
package store

import (
	"sync"
	"time"

	"github.com/rzzdr/options-engine/pkg/models"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
)

type entry struct {
	series  models.PriceSeries
	expires time.Time
}

// InMemorySeriesStore is a TTL cache of price series keyed by request
type InMemorySeriesStore struct {
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	mu         sync.RWMutex
	now        func() time.Time
	log        *logger.Logger
}

// NewInMemorySeriesStore creates a store whose entries live for ttl. When
// maxEntries is reached expired entries are evicted, then the oldest one.
func NewInMemorySeriesStore(ttl time.Duration, maxEntries int) *InMemorySeriesStore {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &InMemorySeriesStore{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		log:        logger.GetLogger("store.series"),
	}
}

// Get returns a cached series that has not expired
func (s *InMemorySeriesStore) Get(key string) (models.PriceSeries, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expires) {
		return models.PriceSeries{}, false
	}
	return copySeries(e.series), true
}

// Put stores a copy of series under key
func (s *InMemorySeriesStore) Put(key string, series models.PriceSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictLocked(now)
	}
	s.entries[key] = entry{series: copySeries(series), expires: now.Add(s.ttl)}
}

// Len is the number of stored entries, expired ones included
func (s *InMemorySeriesStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *InMemorySeriesStore) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
			continue
		}
		if oldestKey == "" || e.expires.Before(oldest) {
			oldestKey, oldest = k, e.expires
		}
	}
	if len(s.entries) >= s.maxEntries && oldestKey != "" {
		delete(s.entries, oldestKey)
		s.log.Debugw("evicted series", "key", oldestKey)
	}
}

func copySeries(in models.PriceSeries) models.PriceSeries {
	out := models.PriceSeries{Symbol: in.Symbol, Points: make([]models.PricePoint, len(in.Points))}
	copy(out.Points, in.Points)
	return out
}
