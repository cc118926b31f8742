package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vkarpovich/shopglance/internal/badge"
	"github.com/vkarpovich/shopglance/internal/cache"
	"github.com/vkarpovich/shopglance/internal/lookup"
	"github.com/vkarpovich/shopglance/internal/marketplace"
	"github.com/vkarpovich/shopglance/internal/page"
)

const searchResultsHTML = `<html><body>
	<div class="ModelList">
		<div class="ModelList__ModelBlockItem">
			<span class="PriceBlock__PriceValue">129,00 - 145,50 р.</span>
			<a class="ModelList__CountShopsLink">5 предложений</a>
		</div>
	</div>
</body></html>`

const hostPageHTML = `<body>
	<div class="product"><span class="name">Mi Band 8</span><span class="price">99 р.</span></div>
	<div class="product"><span class="name">Redmi Watch 4</span><span class="price">199 р.</span></div>
	<div class="product"><span class="price">49 р.</span></div>
</body>`

type countingProxy struct {
	mu    sync.Mutex
	calls []string
	fail  func(url string) bool
}

func (p *countingProxy) Fetch(_ context.Context, url string) marketplace.FetchResult {
	p.mu.Lock()
	p.calls = append(p.calls, url)
	p.mu.Unlock()
	if p.fail != nil && p.fail(url) {
		return marketplace.FetchResult{Success: false, Error: "connection refused"}
	}
	return marketplace.FetchResult{Success: true, HTML: searchResultsHTML}
}

func (p *countingProxy) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestPipeline(t *testing.T, proxy marketplace.FetchProxy, missDelay time.Duration) *Pipeline {
	t.Helper()
	offers := cache.New(cache.Config{Store: cache.NewMemory(), KeyPrefix: "test_"})
	client := marketplace.NewClient(marketplace.ClientConfig{
		Proxy:      proxy,
		Parser:     marketplace.NewParser(marketplace.DefaultSelectors()),
		BaseURL:    "https://shop.by",
		SearchPath: "/find/?findtext=%s&sort=price--number",
	})
	renderer, err := badge.New("")
	require.NoError(t, err)

	pipeline, err := NewPipeline(nil, PipelineOptions{
		Strategies: minimalStrategies(),
		Renderer:   renderer,
		Lookup:     lookup.New(lookup.Config{Cache: offers, Client: client}),
		Offers:     offers,
		MissDelay:  missDelay,
	})
	require.NoError(t, err)
	return pipeline
}

func TestSessionProcessesEachContainerOnce(t *testing.T) {
	proxy := &countingProxy{}
	pipeline := newTestPipeline(t, proxy, 0)
	doc, err := page.ParseString(hostPageHTML)
	require.NoError(t, err)

	session := pipeline.NewSession()
	for range 5 {
		require.NoError(t, session.ScanOnce(context.Background(), doc))
	}

	// Two named containers, one lookup each, regardless of how many passes
	// ran. The nameless container stays unmarked for future passes.
	require.Equal(t, 2, proxy.callCount())
	require.Len(t, session.processed, 2)
	require.Len(t, doc.QueryAll("."+badge.Class), 2)
}

func TestSessionLookupFailureDoesNotAbortPass(t *testing.T) {
	proxy := &countingProxy{fail: func(url string) bool {
		return url == "https://shop.by/find/?findtext=Mi+Band+8&sort=price--number"
	}}
	pipeline := newTestPipeline(t, proxy, 0)
	doc, err := page.ParseString(hostPageHTML)
	require.NoError(t, err)

	session := pipeline.NewSession()
	require.NoError(t, session.ScanOnce(context.Background(), doc))
	require.NoError(t, session.ScanOnce(context.Background(), doc))

	// The failed container is still marked handled, so it is not retried,
	// and the failure did not stop the second container from being badged.
	require.Equal(t, 2, proxy.callCount())
	require.Len(t, doc.QueryAll("."+badge.Class), 1)
}

func TestSessionMissDelayHonorsContext(t *testing.T) {
	proxy := &countingProxy{}
	pipeline := newTestPipeline(t, proxy, time.Hour)
	doc, err := page.ParseString(hostPageHTML)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = pipeline.NewSession().ScanOnce(ctx, doc)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, proxy.callCount())
}

func TestSessionCachedEntriesSkipDelay(t *testing.T) {
	proxy := &countingProxy{}
	pipeline := newTestPipeline(t, proxy, time.Hour)
	doc, err := page.ParseString(hostPageHTML)
	require.NoError(t, err)

	offer := testOffer()
	pipeline.offers.SetOffer(context.Background(), "Mi Band 8", offer)
	pipeline.offers.SetOffer(context.Background(), "Redmi Watch 4", offer)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Both names are cached, so the pass finishes without pacing pauses and
	// without touching the marketplace.
	require.NoError(t, pipeline.NewSession().ScanOnce(ctx, doc))
	require.Zero(t, proxy.callCount())
	require.Len(t, doc.QueryAll("."+badge.Class), 2)
}

func TestSessionRunRescansOnChanges(t *testing.T) {
	proxy := &countingProxy{}
	pipeline := newTestPipeline(t, proxy, 0)
	doc, err := page.ParseString(hostPageHTML)
	require.NoError(t, err)

	changes := make(chan struct{}, 2)
	done := make(chan error, 1)
	session := pipeline.NewSession()
	go func() {
		done <- session.Run(context.Background(), doc, changes)
	}()

	changes <- struct{}{}
	changes <- struct{}{}
	close(changes)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after changes channel closed")
	}
	require.Equal(t, 2, proxy.callCount())
}

func TestPipelineAugmentPage(t *testing.T) {
	proxy := &countingProxy{}
	pipeline := newTestPipeline(t, proxy, 0)

	augmented, err := pipeline.AugmentPage(context.Background(), hostPageHTML)
	require.NoError(t, err)
	require.Contains(t, augmented, badge.Class)
	require.Contains(t, augmented, "129,00 - 145,50 р.")

	// Feeding the augmented page back through produces no duplicate badges.
	again, err := pipeline.AugmentPage(context.Background(), augmented)
	require.NoError(t, err)
	doc, err := page.ParseString(again)
	require.NoError(t, err)
	require.Len(t, doc.QueryAll("."+badge.Class), 2)
}

func TestPipelineReloadKeepsLastGoodSet(t *testing.T) {
	pipeline := newTestPipeline(t, &countingProxy{}, 0)
	before := pipeline.strategies.Load()

	broken := minimalStrategies()
	broken.Anchors[0].TextFilter = `text.contains(`
	require.Error(t, pipeline.Reload(broken))
	require.Same(t, before, pipeline.strategies.Load())

	updated := minimalStrategies()
	updated.Containers = append(updated.Containers, ".extra")
	require.NoError(t, pipeline.Reload(updated))
	require.Len(t, pipeline.strategies.Load().containers, 2)
}
