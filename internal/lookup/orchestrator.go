// Package lookup composes the offer cache and the marketplace client into a
// single cache-first price lookup.
package lookup

import (
	"context"
	"log/slog"
	"time"

	"github.com/vkarpovich/shopglance/internal/cache"
	"github.com/vkarpovich/shopglance/internal/marketplace"
	"github.com/vkarpovich/shopglance/internal/metrics"
)

// Orchestrator answers getPriceData with cache-first semantics: a cached
// record, including a negative one, short-circuits with no network call. On a
// miss the marketplace is queried and the outcome is written back whatever it
// was, so an identical lookup inside the retention window never re-queries.
type Orchestrator struct {
	cache   *cache.OfferCache
	client  *marketplace.Client
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// Config carries the orchestrator collaborators.
type Config struct {
	Cache   *cache.OfferCache
	Client  *marketplace.Client
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// New constructs an orchestrator with the supplied configuration.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cache:   cfg.Cache,
		client:  cfg.Client,
		logger:  logger.With(slog.String("component", "lookup")),
		metrics: cfg.Metrics,
	}
}

// GetPriceData resolves a product name to an offer, or nil when the
// marketplace has no match. It fails only when the network lookup fails;
// cache-layer failures are absorbed upstream and surface as misses.
func (o *Orchestrator) GetPriceData(ctx context.Context, name string) (*marketplace.Offer, error) {
	start := time.Now()
	if offer, found := o.cache.GetOffer(ctx, name); found {
		o.observe(metrics.LookupSourceCache, lookupResult(offer), start)
		return offer, nil
	}

	o.logger.Debug("querying marketplace", slog.String("product", name))
	offer, err := o.client.FetchOffer(ctx, name)
	if err != nil {
		o.observe(metrics.LookupSourceNetwork, metrics.LookupResultError, start)
		return nil, err
	}

	// Negative results are cached too, so the next lookup stays local.
	o.cache.SetOffer(ctx, name, offer)
	o.observe(metrics.LookupSourceNetwork, lookupResult(offer), start)
	return offer, nil
}

func (o *Orchestrator) observe(source metrics.LookupSource, result metrics.LookupResult, start time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveLookup(source, result, time.Since(start))
	}
}

func lookupResult(offer *marketplace.Offer) metrics.LookupResult {
	if offer == nil {
		return metrics.LookupResultNone
	}
	return metrics.LookupResultOffer
}
