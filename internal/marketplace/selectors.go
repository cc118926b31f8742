package marketplace

// Selectors names the HTML vocabulary of the marketplace search page. The
// class names are a fragile external contract: the target site can rename
// them at any time, at which point every lookup quietly degrades to "no
// match". It mirrors the config.MarketplaceSelectors type to avoid circular
// dependencies.
type Selectors struct {
	// NoResults marks an explicit "nothing found" page.
	NoResults string
	// ResultsList is the container holding all result cards.
	ResultsList string
	// ModelCard matches an aggregated model card (price range across shops).
	ModelCard string
	// ShopCard matches a single-shop listing card.
	ShopCard string
	// ModelPrice is the price value inside a model card.
	ModelPrice string
	// ShopPrice is the leading price inside a shop card.
	ShopPrice string
	// ShopCountLink is the explicit "N shops" label on a model card.
	ShopCountLink string
	// Pagination is the page-number strip, when the results span pages.
	Pagination string
	// PageLinks matches the enumerated page links inside Pagination,
	// excluding the active page and the first/last shortcuts.
	PageLinks string
}

// DefaultSelectors returns the vocabulary of the currently supported
// marketplace markup.
func DefaultSelectors() Selectors {
	return Selectors{
		NoResults:     ".PageFind__Noresults",
		ResultsList:   ".ModelList",
		ModelCard:     ".ModelList__ModelBlockItem",
		ShopCard:      ".ShopItemList__BlockItem",
		ModelPrice:    ".PriceBlock__PriceValue",
		ShopPrice:     ".PriceBlock__PriceFirst",
		ShopCountLink: ".ModelList__CountShopsLink",
		Pagination:    ".Paging__InnerPages",
		PageLinks:     ".Paging__PageLink:not(.Paging__DisabledFirstPage):not(.Paging__PageActive):not(.Paging__LastPage)",
	}
}
