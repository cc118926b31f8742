package marketplace

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parser turns a raw search-results document into a normalized Offer. Missing
// or unrecognizable structure is never an error: "no results" and
// "unparseable" are indistinguishable from the available signals, and both
// safely degrade to a nil Offer.
type Parser struct {
	sel Selectors
}

// NewParser builds a parser over the given selector vocabulary.
func NewParser(sel Selectors) *Parser {
	return &Parser{sel: sel}
}

// Parse extracts the authoritative first result from the search page. The
// searchURL is recorded on the returned offer as its reference link. A match
// without a price is not actionable and yields nil.
func (p *Parser) Parse(html, searchURL string) *Offer {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	if doc.Find(p.sel.NoResults).Length() > 0 {
		return nil
	}

	list := doc.Find(p.sel.ResultsList).First()
	if list.Length() == 0 {
		return nil
	}

	modelCard := list.Find(p.sel.ModelCard).First()
	shopCard := list.Find(p.sel.ShopCard).First()
	if modelCard.Length() == 0 && shopCard.Length() == 0 {
		return nil
	}

	var price, count string
	if modelCard.Length() > 0 {
		// A model card aggregates a price range across shops and wins over
		// any single-shop card on the same page.
		price = collapseSpace(modelCard.Find(p.sel.ModelPrice).First().Text())
		if link := modelCard.Find(p.sel.ShopCountLink).First(); link.Length() > 0 {
			count = strings.TrimSpace(link.Text())
		} else {
			visible := list.Find(p.sel.ModelCard + ", " + p.sel.ShopCard).Length()
			count = p.estimateCount(doc, visible)
		}
	} else {
		price = collapseSpace(shopCard.Find(p.sel.ShopPrice).First().Text())
		count = p.estimateCount(doc, list.Find(p.sel.ShopCard).Length())
	}

	if price == "" {
		return nil
	}
	return &Offer{Price: price, URL: searchURL, ShopCount: count}
}

// estimateCount renders the visible card count as an offer-count label. When a
// pagination strip is present the visible count is extrapolated across the
// enumerated pages; the estimate assumes uniform item density per page and is
// prefixed with "~" to mark the approximation. A partially filled last page
// slightly inflates it, which is accepted.
func (p *Parser) estimateCount(doc *goquery.Document, visible int) string {
	pagination := doc.Find(p.sel.Pagination).First()
	if pagination.Length() > 0 {
		totalPages := pagination.Find(p.sel.PageLinks).Length() + 1
		return fmt.Sprintf("~%d предложений", visible*totalPages)
	}
	return fmt.Sprintf("%d %s", visible, offerNoun(visible))
}

// offerNoun picks the Russian noun form agreeing with n offers.
func offerNoun(n int) string {
	switch {
	case n == 1:
		return "предложение"
	case n >= 2 && n <= 4:
		return "предложения"
	default:
		return "предложений"
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
