package marketplace

// Offer is a normalized price result extracted from a marketplace search page.
// Once produced it is never mutated; lookups that find nothing yield a nil
// *Offer rather than a zero value so "not found" stays distinguishable.
type Offer struct {
	// Price is the human-formatted price text with internal whitespace
	// collapsed to single spaces.
	Price string `json:"price"`
	// URL is the search URL the offer was extracted from.
	URL string `json:"url"`
	// ShopCount is a human-readable estimate of how many shops carry the
	// product. May be empty when no estimate could be produced.
	ShopCount string `json:"shopCount"`
}
