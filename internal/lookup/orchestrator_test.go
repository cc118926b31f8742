package lookup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkarpovich/shopglance/internal/cache"
	"github.com/vkarpovich/shopglance/internal/marketplace"
)

type countingProxy struct {
	calls  int
	result marketplace.FetchResult
}

func (p *countingProxy) Fetch(context.Context, string) marketplace.FetchResult {
	p.calls++
	return p.result
}

const offerPage = `<html><body><div class="ModelList">
	<div class="ModelList__ModelBlockItem"><span class="PriceBlock__PriceValue">150 р.</span></div>
</div></body></html>`

const noMatchPage = `<html><body><div class="PageFind__Noresults"></div></body></html>`

func newOrchestrator(proxy marketplace.FetchProxy) (*Orchestrator, *cache.OfferCache) {
	offers := cache.New(cache.Config{Store: cache.NewMemory(), KeyPrefix: "test_"})
	client := marketplace.NewClient(marketplace.ClientConfig{
		Proxy:      proxy,
		Parser:     marketplace.NewParser(marketplace.DefaultSelectors()),
		BaseURL:    "https://shop.by",
		SearchPath: "/find/?findtext=%s&sort=price--number",
	})
	return New(Config{Cache: offers, Client: client}), offers
}

func TestGetPriceDataCachesOffer(t *testing.T) {
	proxy := &countingProxy{result: marketplace.FetchResult{Success: true, HTML: offerPage}}
	orch, _ := newOrchestrator(proxy)
	ctx := context.Background()

	first, err := orch.GetPriceData(ctx, "galaxy")
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, 1, proxy.calls)

	second, err := orch.GetPriceData(ctx, "galaxy")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, proxy.calls, "second lookup must be answered from cache")
}

func TestGetPriceDataCachesNegativeResult(t *testing.T) {
	proxy := &countingProxy{result: marketplace.FetchResult{Success: true, HTML: noMatchPage}}
	orch, _ := newOrchestrator(proxy)
	ctx := context.Background()

	offer, err := orch.GetPriceData(ctx, "unobtainium")
	require.NoError(t, err)
	require.Nil(t, offer)
	require.Equal(t, 1, proxy.calls)

	offer, err = orch.GetPriceData(ctx, "unobtainium")
	require.NoError(t, err)
	require.Nil(t, offer)
	require.Equal(t, 1, proxy.calls, "negative result must be served from cache with zero network calls")
}

func TestGetPriceDataTransportFailureNotCached(t *testing.T) {
	proxy := &countingProxy{result: marketplace.FetchResult{Success: false, Error: "HTTP 502"}}
	orch, offers := newOrchestrator(proxy)
	ctx := context.Background()

	_, err := orch.GetPriceData(ctx, "galaxy")
	require.Error(t, err)

	_, found := offers.GetOffer(ctx, "galaxy")
	require.False(t, found, "failed lookups must not leave cache entries")

	_, err = orch.GetPriceData(ctx, "galaxy")
	require.Error(t, err)
	require.Equal(t, 2, proxy.calls, "failures retry on the next lookup")
}

func TestGetPriceDataPrefersExistingCacheEntry(t *testing.T) {
	proxy := &countingProxy{result: marketplace.FetchResult{Success: true, HTML: offerPage}}
	orch, offers := newOrchestrator(proxy)
	ctx := context.Background()

	seeded := &marketplace.Offer{Price: "99 р.", URL: "https://shop.by/find", ShopCount: "1 предложение"}
	offers.SetOffer(ctx, "galaxy", seeded)

	offer, err := orch.GetPriceData(ctx, "galaxy")
	require.NoError(t, err)
	require.Equal(t, seeded, offer)
	require.Zero(t, proxy.calls)
}
