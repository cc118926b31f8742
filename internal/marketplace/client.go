package marketplace

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// FetchResult is the response shape of the fetch proxy boundary. Upstream
// failures, including non-200 statuses, arrive as Success=false with a
// descriptive Error rather than as a Go error crossing the boundary.
type FetchResult struct {
	Success bool
	HTML    string
	Error   string
}

// FetchProxy performs the cross-origin document fetch on the client's behalf.
type FetchProxy interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// TransportError reports that the fetch proxy could not deliver the search
// page for a lookup. It aborts that single lookup only.
type TransportError struct {
	URL    string
	Reason string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("marketplace: fetch %s: %s", e.URL, e.Reason)
}

// Client resolves a product name to an Offer by querying the marketplace
// search endpoint through the fetch proxy. It is the only component that
// crosses the origin boundary and it never touches the cache.
type Client struct {
	proxy      FetchProxy
	parser     *Parser
	baseURL    string
	searchPath string
	logger     *slog.Logger
}

// ClientConfig carries the collaborators and the search URL template.
type ClientConfig struct {
	Proxy  FetchProxy
	Parser *Parser
	// BaseURL is the marketplace origin, e.g. "https://shop.by".
	BaseURL string
	// SearchPath is a format string with one %s verb receiving the
	// percent-encoded product name.
	SearchPath string
	Logger     *slog.Logger
}

// NewClient wires a lookup client from its configuration.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		proxy:      cfg.Proxy,
		parser:     cfg.Parser,
		baseURL:    cfg.BaseURL,
		searchPath: cfg.SearchPath,
		logger:     logger,
	}
}

// SearchURL builds the marketplace search URL for a product name.
func (c *Client) SearchURL(name string) string {
	return c.baseURL + fmt.Sprintf(c.searchPath, url.QueryEscape(name))
}

// FetchOffer queries the marketplace for the product name and parses the
// response. A nil offer with a nil error means the marketplace has no match;
// a *TransportError means the page never arrived.
func (c *Client) FetchOffer(ctx context.Context, name string) (*Offer, error) {
	searchURL := c.SearchURL(name)
	res := c.proxy.Fetch(ctx, searchURL)
	if !res.Success {
		reason := res.Error
		if reason == "" {
			reason = "fetch failed"
		}
		return nil, &TransportError{URL: searchURL, Reason: reason}
	}

	offer := c.parser.Parse(res.HTML, searchURL)
	if offer == nil {
		c.logger.Debug("no marketplace match", slog.String("product", name))
	}
	return offer, nil
}
