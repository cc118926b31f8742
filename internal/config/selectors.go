package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Strategies is the data-driven selector vocabulary for one host/marketplace
// pairing. Ordered lists are evaluated first-match-wins, so supporting a new
// page layout is a data change rather than new control flow.
type Strategies struct {
	// Containers lists the product container selectors, one per layout
	// variant; matches concatenate in list order, document order within
	// each.
	Containers []string `koanf:"containers"`
	// Names lists the product-name selectors tried in order inside each
	// container.
	Names []string `koanf:"names"`
	// Anchors lists where the badge attaches, tried in order.
	Anchors []AnchorStrategy `koanf:"anchors"`
	// Marketplace names the search-results vocabulary.
	Marketplace MarketplaceSelectors `koanf:"marketplace"`
}

// AnchorStrategy describes one badge insertion point.
type AnchorStrategy struct {
	Selector string `koanf:"selector"`
	// UseParent inserts after the match's parent instead of the match.
	UseParent bool `koanf:"useParent"`
	// DocumentWide searches the whole document rather than the container;
	// some layouts keep the price block outside the product subtree.
	DocumentWide bool `koanf:"documentWide"`
	// TextFilter is an optional CEL expression over `text` (the candidate's
	// text content) that must evaluate to true for the candidate to anchor.
	TextFilter string `koanf:"textFilter"`
}

// MarketplaceSelectors mirrors marketplace.Selectors for configuration
// loading.
type MarketplaceSelectors struct {
	NoResults     string `koanf:"noResults"`
	ResultsList   string `koanf:"resultsList"`
	ModelCard     string `koanf:"modelCard"`
	ShopCard      string `koanf:"shopCard"`
	ModelPrice    string `koanf:"modelPrice"`
	ShopPrice     string `koanf:"shopPrice"`
	ShopCountLink string `koanf:"shopCountLink"`
	Pagination    string `koanf:"pagination"`
	PageLinks     string `koanf:"pageLinks"`
}

// DefaultStrategies returns the built-in vocabulary for the currently
// supported host catalog and marketplace markup.
func DefaultStrategies() Strategies {
	return Strategies{
		Containers: []string{
			".catalog-form__offers-unit",
			".product-summary",
			".catalog-masthead",
		},
		Names: []string{
			".catalog-form__offers-part_data .catalog-form__link",
			".product-summary__caption",
			".catalog-masthead__title",
		},
		Anchors: []AnchorStrategy{
			{Selector: ".catalog-form__offers-part_control .catalog-form__link", UseParent: true},
			{Selector: ".product-summary__price"},
			{
				Selector:     ".product-aside__description",
				DocumentWide: true,
				TextFilter:   `text.contains("р.") && text.trim().matches("^\\d+[,\\s\\d]*р\\..*")`,
			},
		},
		Marketplace: MarketplaceSelectors{
			NoResults:     ".PageFind__Noresults",
			ResultsList:   ".ModelList",
			ModelCard:     ".ModelList__ModelBlockItem",
			ShopCard:      ".ShopItemList__BlockItem",
			ModelPrice:    ".PriceBlock__PriceValue",
			ShopPrice:     ".PriceBlock__PriceFirst",
			ShopCountLink: ".ModelList__CountShopsLink",
			Pagination:    ".Paging__InnerPages",
			PageLinks:     ".Paging__PageLink:not(.Paging__DisabledFirstPage):not(.Paging__PageActive):not(.Paging__LastPage)",
		},
	}
}

// Validate rejects strategy sets the scan loop could not work with.
func (s Strategies) Validate() error {
	if len(s.Containers) == 0 {
		return errors.New("config: selectors need at least one container strategy")
	}
	if len(s.Names) == 0 {
		return errors.New("config: selectors need at least one name strategy")
	}
	for i, sel := range s.Containers {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("config: container selector %d is empty", i)
		}
	}
	for i, sel := range s.Names {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("config: name selector %d is empty", i)
		}
	}
	for i, anchor := range s.Anchors {
		if strings.TrimSpace(anchor.Selector) == "" {
			return fmt.Errorf("config: anchor selector %d is empty", i)
		}
	}
	return nil
}

// LoadStrategies reads a selectors file over the built-in defaults. File
// format follows the extension: yaml, json, or toml.
func LoadStrategies(path string) (Strategies, error) {
	defaults := DefaultStrategies()
	if strings.TrimSpace(path) == "" {
		return defaults, nil
	}

	parser, err := parserFor(path)
	if err != nil {
		return Strategies{}, err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(strategiesToMap(defaults), "."), nil); err != nil {
		return Strategies{}, fmt.Errorf("config: selectors defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return Strategies{}, fmt.Errorf("config: load selectors %s: %w", path, err)
	}

	var strategies Strategies
	if err := k.Unmarshal("", &strategies); err != nil {
		return Strategies{}, fmt.Errorf("config: decode selectors %s: %w", path, err)
	}
	if err := strategies.Validate(); err != nil {
		return Strategies{}, err
	}
	return strategies, nil
}

func strategiesToMap(s Strategies) map[string]any {
	anchors := make([]map[string]any, 0, len(s.Anchors))
	for _, anchor := range s.Anchors {
		anchors = append(anchors, map[string]any{
			"selector":     anchor.Selector,
			"useParent":    anchor.UseParent,
			"documentWide": anchor.DocumentWide,
			"textFilter":   anchor.TextFilter,
		})
	}
	return map[string]any{
		"containers": s.Containers,
		"names":      s.Names,
		"anchors":    anchors,
		"marketplace": map[string]any{
			"noResults":     s.Marketplace.NoResults,
			"resultsList":   s.Marketplace.ResultsList,
			"modelCard":     s.Marketplace.ModelCard,
			"shopCard":      s.Marketplace.ShopCard,
			"modelPrice":    s.Marketplace.ModelPrice,
			"shopPrice":     s.Marketplace.ShopPrice,
			"shopCountLink": s.Marketplace.ShopCountLink,
			"pagination":    s.Marketplace.Pagination,
			"pageLinks":     s.Marketplace.PageLinks,
		},
	}
}
