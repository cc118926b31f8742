package scan

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/vkarpovich/shopglance/internal/page"
)

// Session tracks which product containers of a single document have already
// been processed. Container identity is the parsed node pointer, which is
// stable for the lifetime of a document, so repeated scan passes over the
// same tree skip everything handled earlier.
type Session struct {
	pipeline  *Pipeline
	processed map[*html.Node]bool
}

func newSession(p *Pipeline) *Session {
	return &Session{
		pipeline:  p,
		processed: make(map[*html.Node]bool),
	}
}

// ScanOnce walks every container currently in the document and processes the
// ones not seen before, strictly in document order and one at a time.
// Containers without an extractable name are left unmarked so a later pass
// can pick them up once their content settles. Lookup or injection failures
// are logged and never abort the pass.
func (s *Session) ScanOnce(ctx context.Context, doc *page.Document) error {
	p := s.pipeline
	containers := p.extractor.FindContainers(doc)

	for _, container := range containers {
		if err := ctx.Err(); err != nil {
			return err
		}
		node := container.Node()
		if node == nil || s.processed[node] {
			continue
		}

		name := p.extractor.ExtractName(container)
		if name == "" {
			continue
		}
		s.processed[node] = true

		cached := false
		if p.offers != nil {
			_, cached = p.offers.GetOffer(ctx, name)
		}

		offer, err := p.lookup.GetPriceData(ctx, name)
		if err != nil {
			p.logger.Warn("price lookup failed",
				slog.String("product", name),
				slog.Any("error", err))
		} else if offer != nil {
			if err := p.injector.Inject(doc, container, offer); err != nil && !errors.Is(err, ErrNoAnchor) {
				p.logger.Warn("badge injection failed",
					slog.String("product", name),
					slog.Any("error", err))
			}
		}

		// Entries answered from cache cost no marketplace request and
		// need no pacing; everything else gets the configured breather.
		if !cached && p.missDelay > 0 {
			if err := sleepCtx(ctx, p.missDelay); err != nil {
				return err
			}
		}
	}

	p.metrics.ObserveScan()
	return nil
}

// Run performs the initial scan after the startup delay and then re-scans
// whenever the changes channel signals. Signals arriving mid-pass coalesce
// into a single follow-up pass. Run returns when ctx is cancelled or the
// channel closes.
func (s *Session) Run(ctx context.Context, doc *page.Document, changes <-chan struct{}) error {
	if d := s.pipeline.startupDelay; d > 0 {
		if err := sleepCtx(ctx, d); err != nil {
			return err
		}
	}
	if err := s.ScanOnce(ctx, doc); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			s.drainPending(changes)
			if err := s.ScanOnce(ctx, doc); err != nil {
				return err
			}
		}
	}
}

func (s *Session) drainPending(changes <-chan struct{}) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
