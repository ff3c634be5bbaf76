package rank

import (
	"net/url"
	"strings"
	"unicode"
)

// productIDParams are the query parameters, in preference order, that
// carry a canonical product identifier in catalog detail URLs.
var productIDParams = []string{"goodsNo", "prdNo", "itemNo"}

// ResolveKey derives the stable identity key for an entry.
//
// When candidateURL carries a known product-identifier parameter the key
// is "id:" + identifier; otherwise it falls back to a normalized form of
// fallbackName (lower-cased, punctuation and whitespace collapsed).
// Resolution is pure and stable across runs for the same product, which
// is what makes two independently scraped snapshots comparable even when
// promotional title prefixes differ day to day.
func ResolveKey(candidateURL, fallbackName string) string {
	if id := productID(candidateURL); id != "" {
		return "id:" + id
	}
	return normalizeName(fallbackName)
}

func productID(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	for _, p := range productIDParams {
		if v := q.Get(p); v != "" {
			return v
		}
	}
	return ""
}

// normalizeName lower-cases the name and collapses every run of
// punctuation or whitespace into a single space.
func normalizeName(name string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
