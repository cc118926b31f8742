package scan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vkarpovich/shopglance/internal/badge"
	"github.com/vkarpovich/shopglance/internal/config"
	"github.com/vkarpovich/shopglance/internal/marketplace"
	"github.com/vkarpovich/shopglance/internal/page"
)

func newTestInjector(t *testing.T, strategies config.Strategies) *Injector {
	t.Helper()
	renderer, err := badge.New("")
	require.NoError(t, err)
	return NewInjector(newStrategyPtr(t, strategies), renderer, nil, nil)
}

func testOffer() *marketplace.Offer {
	return &marketplace.Offer{
		Price:     "129,00 - 145,50 р.",
		URL:       "https://shop.by/find/?findtext=mi+band&sort=price--number",
		ShopCount: "5 предложений",
	}
}

func TestInjectPlacesBadgeAfterAnchor(t *testing.T) {
	injector := newTestInjector(t, minimalStrategies())
	doc, err := page.ParseString(`<body>
		<div class="product"><span class="name">Mi Band 8</span><span class="price">99 р.</span></div>
	</body>`)
	require.NoError(t, err)

	container := doc.QueryAll(".product")[0]
	require.NoError(t, injector.Inject(doc, container, testOffer()))

	badges := doc.QueryAll("." + badge.Class)
	require.Len(t, badges, 1)

	rendered, err := doc.Render()
	require.NoError(t, err)
	require.Contains(t, rendered, "129,00 - 145,50 р.")
	require.Contains(t, rendered, "5 предложений")
}

func TestInjectIsIdempotent(t *testing.T) {
	injector := newTestInjector(t, minimalStrategies())
	doc, err := page.ParseString(`<body>
		<div class="product"><span class="price">99 р.</span></div>
	</body>`)
	require.NoError(t, err)

	container := doc.QueryAll(".product")[0]
	require.NoError(t, injector.Inject(doc, container, testOffer()))
	require.NoError(t, injector.Inject(doc, container, testOffer()))

	require.Len(t, doc.QueryAll("."+badge.Class), 1)
}

func TestInjectStrategyOrderWins(t *testing.T) {
	strategies := minimalStrategies()
	strategies.Anchors = []config.AnchorStrategy{
		{Selector: ".missing"},
		{Selector: ".buy", UseParent: true},
		{Selector: ".price"},
	}
	injector := newTestInjector(t, strategies)

	doc, err := page.ParseString(`<body>
		<div class="product">
			<div class="controls"><a class="buy">Купить</a></div>
			<span class="price">99 р.</span>
		</div>
	</body>`)
	require.NoError(t, err)

	container := doc.QueryAll(".product")[0]
	require.NoError(t, injector.Inject(doc, container, testOffer()))

	// UseParent attaches the badge as a sibling of the controls block, not
	// inside it.
	controls := doc.QueryAll(".controls")[0]
	require.False(t, controls.Has("."+badge.Class))
	require.True(t, container.Has("."+badge.Class))
}

func TestInjectDocumentWideAnchorWithFilter(t *testing.T) {
	strategies := minimalStrategies()
	strategies.Containers = []string{".masthead"}
	strategies.Anchors = []config.AnchorStrategy{{
		Selector:     ".aside-row",
		DocumentWide: true,
		TextFilter:   `text.contains("р.")`,
	}}
	injector := newTestInjector(t, strategies)

	doc, err := page.ParseString(`<body>
		<div class="masthead"><h1 class="name">Mi Band 8</h1></div>
		<aside>
			<div class="aside-row">в наличии</div>
			<div class="aside-row">149,00 р.</div>
		</aside>
	</body>`)
	require.NoError(t, err)

	container := doc.QueryAll(".masthead")[0]
	require.NoError(t, injector.Inject(doc, container, testOffer()))

	// The filtered candidate anchors the badge even though it sits outside
	// the container subtree.
	aside := doc.QueryAll("aside")[0]
	require.True(t, aside.Has("."+badge.Class))
	require.False(t, container.Has("."+badge.Class))
}

func TestInjectDocumentWideIsIdempotent(t *testing.T) {
	strategies := minimalStrategies()
	strategies.Containers = []string{".masthead"}
	strategies.Anchors = []config.AnchorStrategy{{
		Selector:     ".aside-row",
		DocumentWide: true,
		TextFilter:   `text.contains("р.")`,
	}}
	injector := newTestInjector(t, strategies)

	doc, err := page.ParseString(`<body>
		<div class="masthead"><h1 class="name">Mi Band 8</h1></div>
		<aside><div class="aside-row">149,00 р.</div></aside>
	</body>`)
	require.NoError(t, err)

	// The badge lands outside the container, so the container-scoped check
	// cannot see it; re-injecting must still be a no-op.
	container := doc.QueryAll(".masthead")[0]
	require.NoError(t, injector.Inject(doc, container, testOffer()))
	require.NoError(t, injector.Inject(doc, container, testOffer()))
	require.Len(t, doc.QueryAll("."+badge.Class), 1)
}

func TestInjectNoAnchor(t *testing.T) {
	injector := newTestInjector(t, minimalStrategies())
	doc, err := page.ParseString(`<body><div class="product"><span class="name">Mi Band 8</span></div></body>`)
	require.NoError(t, err)

	container := doc.QueryAll(".product")[0]
	err = injector.Inject(doc, container, testOffer())
	require.ErrorIs(t, err, ErrNoAnchor)
	require.Empty(t, doc.QueryAll("."+badge.Class))
}
