// Package extract turns raw acquisition output, an HTML document or a
// JSON payload, into catalog entries. Every field is resolved through a
// candidate cascade: an ordered list of selectors or field names tried
// until one yields a value. The cascades are the main defense against
// upstream markup drift; adding a selector is a config change, not a
// code change.
package extract

import (
	"errors"
	"net/url"
	"strings"
)

// ErrStructureMismatch means the document parsed fine but none of the
// configured list selectors matched enough items to be the catalog.
var ErrStructureMismatch = errors.New("extract: no list selector matched the document structure")

// Config holds the candidate cascades. Zero-value fields fall back to
// the defaults for the upstream catalog's markup.
type Config struct {
	// BaseURL resolves relative product links.
	BaseURL string

	// ListSelectors locate the ranked product cards, tried in order.
	ListSelectors []string

	// Per-card cascades.
	NameSelectors          []string
	BrandSelectors         []string
	PriceSelectors         []string
	OriginalPriceSelectors []string
	LinkSelectors          []string
	FlagSelectors          []string
	RatingSelectors        []string

	// MinItems is the smallest match count a list selector must produce
	// to be accepted as the catalog list.
	MinItems int
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.oliveyoung.co.kr"
	}
	if len(c.ListSelectors) == 0 {
		c.ListSelectors = []string{
			"ul.cate_prd_list li",
			".ranking_list .prd_info",
			"ul.tab_cont_list li",
			"ul.prd_list li",
			"div.best_prd_area ul li",
			"div#Container ul li",
		}
	}
	if len(c.NameSelectors) == 0 {
		c.NameSelectors = []string{".tx_name", ".prd_name", ".name", "a .name", "strong", "a[title]"}
	}
	if len(c.BrandSelectors) == 0 {
		c.BrandSelectors = []string{".tx_brand"}
	}
	if len(c.PriceSelectors) == 0 {
		c.PriceSelectors = []string{".tx_cur .tx_num", ".tx_cur", ".cur_price", ".price .num", ".price", ".won", ".cost"}
	}
	if len(c.OriginalPriceSelectors) == 0 {
		c.OriginalPriceSelectors = []string{".tx_org .tx_num"}
	}
	if len(c.LinkSelectors) == 0 {
		c.LinkSelectors = []string{"a.prd_thumb", "a.prd_info", "a"}
	}
	if len(c.FlagSelectors) == 0 {
		c.FlagSelectors = []string{".prd_flag .icon_flag"}
	}
	if len(c.RatingSelectors) == 0 {
		c.RatingSelectors = []string{".review_point .point"}
	}
	if c.MinItems <= 0 {
		c.MinItems = 5
	}
}

// Default returns the cascades for the upstream catalog's current markup.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// absoluteURL resolves href against base. Invalid or empty input comes
// back unchanged so a broken link still reaches the identity fallback.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
