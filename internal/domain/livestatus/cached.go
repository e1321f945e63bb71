package livestatus

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/edforecast/edforecast/internal/platform/metrics"
)

// Store is the subset of the Redis cache used for live counts.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedSource serves counts from a Store while they are younger than ttl
// and falls through to the wrapped Source otherwise. Cache errors are logged
// and never fail a request.
type CachedSource struct {
	src    Source
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedSource(src Source, store Store, ttl time.Duration, logger zerolog.Logger) *CachedSource {
	return &CachedSource{
		src:    src,
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "livestatus-cache").Logger(),
	}
}

func cacheKey(orgID string) string {
	return "livestatus:" + orgID
}

func (c *CachedSource) Counts(ctx context.Context, orgID string) (Counts, error) {
	key := cacheKey(orgID)

	var cached Counts
	found, err := c.store.Get(ctx, key, &cached)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("live status cache read failed")
	}
	if found {
		metrics.LiveStatusFetches.WithLabelValues("cache", "hit").Inc()
		return cached, nil
	}

	counts, err := c.src.Counts(ctx, orgID)
	if err != nil {
		return Counts{}, err
	}
	if c.ttl > 0 {
		if err := c.store.Set(ctx, key, counts, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("live status cache write failed")
		}
	}
	return counts, nil
}
