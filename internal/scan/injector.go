package scan

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/vkarpovich/shopglance/internal/badge"
	"github.com/vkarpovich/shopglance/internal/marketplace"
	"github.com/vkarpovich/shopglance/internal/metrics"
	"github.com/vkarpovich/shopglance/internal/page"
)

// ErrNoAnchor reports that no anchor strategy found an insertion point for
// the badge. The container stays badge-less but is still considered handled,
// so the scan loop does not retry it every pass.
var ErrNoAnchor = errors.New("scan: no anchor for badge")

// Injector attaches a rendered price badge next to a layout-appropriate
// anchor inside (or, for document-wide strategies, outside) the container.
type Injector struct {
	strategies *atomic.Pointer[StrategySet]
	renderer   *badge.Renderer
	logger     *slog.Logger
	metrics    *metrics.Recorder
}

// NewInjector binds an injector to the shared strategy pointer and the badge
// renderer.
func NewInjector(strategies *atomic.Pointer[StrategySet], renderer *badge.Renderer, logger *slog.Logger, recorder *metrics.Recorder) *Injector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Injector{
		strategies: strategies,
		renderer:   renderer,
		logger:     logger.With(slog.String("component", "injector")),
		metrics:    recorder,
	}
}

// Inject inserts the badge after the first matching anchor. Re-invoking with
// a container that already carries a badge is a no-op, which keeps repeated
// scans idempotent. Document-wide anchors place the badge outside the
// container subtree, so for those the duplicate check moves to the anchor's
// parent instead.
func (i *Injector) Inject(doc *page.Document, container *page.Element, offer *marketplace.Offer) error {
	if container.Has("." + badge.Class) {
		i.observe(metrics.BadgeDuplicate)
		return nil
	}

	anchor, documentWide := i.findAnchor(doc, container)
	if anchor == nil {
		i.observe(metrics.BadgeNoAnchor)
		return ErrNoAnchor
	}
	if documentWide {
		if parent := anchor.Parent(); parent != nil && parent.Has("."+badge.Class) {
			i.observe(metrics.BadgeDuplicate)
			return nil
		}
	}

	fragment, err := i.renderer.Render(*offer)
	if err != nil {
		return fmt.Errorf("scan: badge render: %w", err)
	}
	anchor.InsertAfterHTML(fragment)
	i.observe(metrics.BadgeInjected)
	return nil
}

func (i *Injector) findAnchor(doc *page.Document, container *page.Element) (*page.Element, bool) {
	set := i.strategies.Load()
	for _, strategy := range set.anchors {
		var candidates []*page.Element
		if strategy.documentWide {
			candidates = doc.QueryAll(strategy.selector)
		} else {
			candidates = container.Find(strategy.selector)
		}
		for _, candidate := range candidates {
			if !strategy.matchesFilter(candidate.Text()) {
				continue
			}
			if strategy.useParent {
				if parent := candidate.Parent(); parent != nil {
					return parent, strategy.documentWide
				}
				continue
			}
			return candidate, strategy.documentWide
		}
	}
	return nil, false
}

func (i *Injector) observe(outcome metrics.BadgeOutcome) {
	if i.metrics != nil {
		i.metrics.ObserveBadge(outcome)
	}
}
