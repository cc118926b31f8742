package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/vkarpovich/shopglance/internal/marketplace"
	"github.com/vkarpovich/shopglance/internal/metrics"
)

// DefaultRetention is how long a record stays trustworthy. Measured from the
// record's StoredAt; anything older is treated as absent and purged on read.
const DefaultRetention = 6 * time.Hour

// OfferCache fronts the Store with the freshness and failure policy the
// lookup path relies on: expiry on read, explicit negative entries, and
// store failures absorbed into miss behavior. Caching is an optimization,
// never a correctness requirement, so no method returns an error.
type OfferCache struct {
	store     Store
	retention time.Duration
	prefix    string
	logger    *slog.Logger
	metrics   *metrics.Recorder
}

// Config assembles an OfferCache.
type Config struct {
	Store     Store
	Retention time.Duration
	KeyPrefix string
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
}

// New constructs the adapter with the supplied configuration.
func New(cfg Config) *OfferCache {
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OfferCache{
		store:     cfg.Store,
		retention: retention,
		prefix:    cfg.KeyPrefix,
		logger:    logger.With(slog.String("component", "offer_cache")),
		metrics:   cfg.Metrics,
	}
}

// GetOffer reads the cached result for a product name. found=true with a nil
// offer is a fresh negative entry. Expired records are deleted as a side
// effect and reported as absent; so are store read failures.
func (c *OfferCache) GetOffer(ctx context.Context, name string) (offer *marketplace.Offer, found bool) {
	key := Key(c.prefix, name)
	start := time.Now()
	record, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.observe(metrics.CacheOperationLookup, metrics.CacheOutcomeError, start)
		c.logger.Warn("cache read failed", slog.String("product", name), slog.Any("error", err))
		return nil, false
	}
	if !ok {
		c.observe(metrics.CacheOperationLookup, metrics.CacheOutcomeMiss, start)
		return nil, false
	}
	if time.Since(record.StoredAt) > c.retention {
		if err := c.store.Remove(ctx, key); err != nil {
			c.logger.Warn("stale record removal failed", slog.String("product", name), slog.Any("error", err))
		}
		c.observe(metrics.CacheOperationLookup, metrics.CacheOutcomeExpired, start)
		c.logger.Debug("cache record expired", slog.String("product", name))
		return nil, false
	}
	c.observe(metrics.CacheOperationLookup, metrics.CacheOutcomeHit, start)
	return record.Offer, true
}

// SetOffer writes the lookup result unconditionally, overwriting any prior
// record. A nil offer records a negative result. Write failures are logged
// and swallowed; a failed write must never block badge injection.
func (c *OfferCache) SetOffer(ctx context.Context, name string, offer *marketplace.Offer) {
	key := Key(c.prefix, name)
	record := Record{StoredAt: time.Now().UTC(), Offer: offer}
	start := time.Now()
	if err := c.store.Set(ctx, key, record); err != nil {
		c.observe(metrics.CacheOperationStore, metrics.CacheOutcomeError, start)
		c.logger.Warn("cache write failed", slog.String("product", name), slog.Any("error", err))
		return
	}
	c.observe(metrics.CacheOperationStore, metrics.CacheOutcomeStored, start)
}

func (c *OfferCache) observe(op metrics.CacheOperation, outcome metrics.CacheOutcome, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveCacheOperation(op, outcome, time.Since(start))
	}
}
