package stats

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ericfisherdev/osmpanel/internal/domain/model"
	"github.com/ericfisherdev/osmpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StatisticsFetcher = (*CachedFetcher)(nil)

// CachedFetcher keeps successful snapshots in memory for ttl so that bursts
// of refreshes do not hit the backend. Failures are never cached.
type CachedFetcher struct {
	next  driven.StatisticsFetcher
	cache *gocache.Cache
	ttl   time.Duration
}

// NewCachedFetcher wraps next with a TTL cache. A ttl of zero disables caching.
func NewCachedFetcher(next driven.StatisticsFetcher, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		next:  next,
		cache: gocache.New(ttl, 2*ttl+time.Minute),
		ttl:   ttl,
	}
}

// FetchStatistics returns the cached snapshot for userID or fetches a fresh one.
func (f *CachedFetcher) FetchStatistics(ctx context.Context, userID int64) (model.StatisticsSnapshot, error) {
	if f.ttl <= 0 {
		return f.next.FetchStatistics(ctx, userID)
	}

	key := strconv.FormatInt(userID, 10)
	if v, ok := f.cache.Get(key); ok {
		if snapshot, ok := v.(model.StatisticsSnapshot); ok {
			return snapshot, nil
		}
	}

	snapshot, err := f.next.FetchStatistics(ctx, userID)
	if err != nil {
		return model.StatisticsSnapshot{}, err
	}
	f.cache.SetDefault(key, snapshot)
	return snapshot, nil
}
