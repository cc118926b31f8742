package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vkarpovich/shopglance/internal/badge"
	"github.com/vkarpovich/shopglance/internal/cache"
	"github.com/vkarpovich/shopglance/internal/config"
	"github.com/vkarpovich/shopglance/internal/lookup"
	"github.com/vkarpovich/shopglance/internal/metrics"
	"github.com/vkarpovich/shopglance/internal/page"
)

// Pipeline owns the shared scan machinery: strategies, extractor, injector,
// the lookup orchestrator, and pacing. Per-document state lives in Session;
// one pipeline serves any number of documents.
type Pipeline struct {
	strategies *atomic.Pointer[StrategySet]
	extractor  *Extractor
	injector   *Injector
	lookup     *lookup.Orchestrator
	offers     *cache.OfferCache
	logger     *slog.Logger
	metrics    *metrics.Recorder

	startupDelay time.Duration
	missDelay    time.Duration
}

// PipelineOptions configures a pipeline.
type PipelineOptions struct {
	Strategies config.Strategies
	Renderer   *badge.Renderer
	Lookup     *lookup.Orchestrator
	// Offers is consulted directly for pacing decisions: containers whose
	// name is already cached are processed without delay.
	Offers  *cache.OfferCache
	Metrics *metrics.Recorder

	// StartupDelay defers a session's first scan pass.
	StartupDelay time.Duration
	// MissDelay is the pause inserted after processing each container that
	// was not already cached, bounding the marketplace request rate.
	MissDelay time.Duration
}

// NewPipeline compiles the strategy set and wires the scan components.
func NewPipeline(logger *slog.Logger, opts PipelineOptions) (*Pipeline, error) {
	set, err := Compile(opts.Strategies)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	strategies := new(atomic.Pointer[StrategySet])
	strategies.Store(set)

	return &Pipeline{
		strategies:   strategies,
		extractor:    NewExtractor(strategies),
		injector:     NewInjector(strategies, opts.Renderer, logger, opts.Metrics),
		lookup:       opts.Lookup,
		offers:       opts.Offers,
		logger:       logger.With(slog.String("component", "scan")),
		metrics:      opts.Metrics,
		startupDelay: opts.StartupDelay,
		missDelay:    opts.MissDelay,
	}, nil
}

// Reload compiles and swaps the strategy set. In-flight scans finish with
// the set they started with; the next pass sees the new one.
func (p *Pipeline) Reload(strategies config.Strategies) error {
	set, err := Compile(strategies)
	if err != nil {
		return fmt.Errorf("scan: reload strategies: %w", err)
	}
	p.strategies.Store(set)
	p.logger.Info("selector strategies reloaded",
		slog.Int("containers", len(set.containers)),
		slog.Int("anchors", len(set.anchors)))
	return nil
}

// AugmentPage runs one synchronous scan pass over raw HTML and returns the
// document with badges injected. Used by the HTTP surface.
func (p *Pipeline) AugmentPage(ctx context.Context, rawHTML string) (string, error) {
	doc, err := page.ParseString(rawHTML)
	if err != nil {
		return "", fmt.Errorf("scan: parse page: %w", err)
	}
	session := p.NewSession()
	if err := session.ScanOnce(ctx, doc); err != nil {
		return "", err
	}
	return doc.Render()
}

// NewSession creates the per-document state for incremental scanning.
func (p *Pipeline) NewSession() *Session {
	return newSession(p)
}
