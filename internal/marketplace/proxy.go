package marketplace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxSearchPageBytes = 4 << 20

// HTTPProxyConfig shapes the outbound request the proxy sends upstream.
type HTTPProxyConfig struct {
	// Referer is sent with every request; usually the marketplace origin.
	Referer   string
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

type httpProxy struct {
	client  *http.Client
	referer string
	agent   string
	logger  *slog.Logger
}

// NewHTTPProxy builds the production fetch proxy. It honors the boundary
// contract: every failure mode, including a non-200 upstream status, comes
// back as FetchResult{Success: false} and never as a returned error.
func NewHTTPProxy(cfg HTTPProxyConfig) FetchProxy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &httpProxy{
		client:  &http.Client{Timeout: timeout},
		referer: cfg.Referer,
		agent:   cfg.UserAgent,
		logger:  logger.With(slog.String("component", "fetch_proxy")),
	}
}

func (p *httpProxy) Fetch(ctx context.Context, rawURL string) FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{Success: false, Error: err.Error()}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru,en;q=0.9")
	if p.referer != "" {
		req.Header.Set("Referer", p.referer)
	}
	if p.agent != "" {
		req.Header.Set("User-Agent", p.agent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("upstream fetch failed", slog.String("url", rawURL), slog.Any("error", err))
		return FetchResult{Success: false, Error: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("upstream fetch rejected", slog.String("url", rawURL), slog.Int("status", resp.StatusCode))
		return FetchResult{Success: false, Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchPageBytes))
	if err != nil {
		return FetchResult{Success: false, Error: err.Error()}
	}
	return FetchResult{Success: true, HTML: string(body)}
}
