package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/rankwatch/rank"
)

// FromHTML parses markup and extracts catalog entries from it.
func FromHTML(htmlSrc string, cfg Config) ([]rank.Entry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return FromDocument(doc, cfg)
}

// FromDocument extracts catalog entries from a parsed document. The
// first list selector matching at least cfg.MinItems cards wins; if none
// does, the selector with the most matches is used as a degraded result,
// and ErrStructureMismatch is returned only when nothing matches at all.
func FromDocument(doc *goquery.Document, cfg Config) ([]rank.Entry, error) {
	cfg.applyDefaults()

	var cards *goquery.Selection
	best := 0
	for _, sel := range cfg.ListSelectors {
		found := doc.Find(sel)
		n := found.Length()
		if n >= cfg.MinItems {
			cards = found
			break
		}
		if n > best {
			best = n
			cards = found
		}
	}
	if cards == nil || cards.Length() == 0 {
		return nil, ErrStructureMismatch
	}

	var entries []rank.Entry
	cards.Each(func(_ int, card *goquery.Selection) {
		e, ok := entryFromCard(card, cfg)
		if ok {
			entries = append(entries, e)
		}
	})
	if len(entries) == 0 {
		return nil, ErrStructureMismatch
	}
	return entries, nil
}

// entryFromCard builds one entry from a product card. Cards with
// neither a name nor a link are advertising filler and are skipped.
func entryFromCard(card *goquery.Selection, cfg Config) (rank.Entry, bool) {
	rawName := firstText(card, cfg.NameSelectors)
	link := firstLink(card, cfg.LinkSelectors, cfg.BaseURL)
	if rawName == "" && link == "" {
		return rank.Entry{}, false
	}

	name := rank.CleanTitle(rawName)
	brand := firstText(card, cfg.BrandSelectors)
	if brand == "" {
		brand = rank.ExtractBrand(name)
	}
	original := rank.ParseAmount(firstText(card, cfg.OriginalPriceSelectors))
	sale := rank.ParseAmount(firstText(card, cfg.PriceSelectors))
	if sale == 0 {
		sale, original = original, 0
	}

	e := rank.Entry{
		StableKey:     rank.ResolveKey(link, name),
		DisplayName:   name,
		RawName:       rawName,
		Brand:         brand,
		URL:           link,
		OriginalPrice: original,
		SalePrice:     sale,
		DiscountPct:   rank.DiscountPct(original, sale),
		Flags:         allTexts(card, cfg.FlagSelectors),
		Rating:        firstText(card, cfg.RatingSelectors),
	}
	return e, true
}

// firstText walks a cascade and returns the first non-empty value. An
// attribute selector like "a[title]" reads the attribute itself, since
// the element text of such anchors is usually an image.
func firstText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		found := s.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if attr := attrFromSelector(sel); attr != "" {
			if v, ok := found.Attr(attr); ok {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
			continue
		}
		if t := strings.TrimSpace(found.Text()); t != "" {
			return t
		}
	}
	return ""
}

func allTexts(s *goquery.Selection, selectors []string) []string {
	for _, sel := range selectors {
		var out []string
		s.Find(sel).Each(func(_ int, m *goquery.Selection) {
			if t := strings.TrimSpace(m.Text()); t != "" {
				out = append(out, t)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func firstLink(s *goquery.Selection, selectors []string, base string) string {
	for _, sel := range selectors {
		href, ok := s.Find(sel).First().Attr("href")
		if !ok {
			continue
		}
		if abs := absoluteURL(base, href); abs != "" {
			return abs
		}
	}
	// The card itself may be the anchor.
	if href, ok := s.Attr("href"); ok {
		return absoluteURL(base, href)
	}
	return ""
}

// attrFromSelector returns the attribute name of a bare "[attr]"
// suffix selector, "" otherwise.
func attrFromSelector(sel string) string {
	open := strings.LastIndexByte(sel, '[')
	if open < 0 || !strings.HasSuffix(sel, "]") {
		return ""
	}
	inner := sel[open+1 : len(sel)-1]
	if strings.ContainsAny(inner, "=^$*~|") {
		return ""
	}
	return inner
}
