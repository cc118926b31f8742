package scan

import (
	"strings"
	"sync/atomic"

	"github.com/vkarpovich/shopglance/internal/page"
)

// Extractor locates product containers and their names using the active
// strategy set. The set pointer is shared with the session so a hot reload
// takes effect on the next scan pass.
type Extractor struct {
	strategies *atomic.Pointer[StrategySet]
}

// NewExtractor binds an extractor to a shared strategy pointer.
func NewExtractor(strategies *atomic.Pointer[StrategySet]) *Extractor {
	return &Extractor{strategies: strategies}
}

// FindContainers returns every product container currently in the document:
// matches concatenate in strategy-list order, document order within each
// stratum.
func (e *Extractor) FindContainers(doc *page.Document) []*page.Element {
	set := e.strategies.Load()
	var containers []*page.Element
	for _, selector := range set.containers {
		containers = append(containers, doc.QueryAll(selector)...)
	}
	return containers
}

// ExtractName returns the container's product name, or "" when no name
// strategy matches. A nameless container is left for a later scan; the page
// may still be rendering it.
func (e *Extractor) ExtractName(container *page.Element) string {
	set := e.strategies.Load()
	for _, selector := range set.names {
		if el := container.First(selector); el != nil {
			if name := strings.TrimSpace(el.Text()); name != "" {
				return name
			}
		}
	}
	return ""
}
