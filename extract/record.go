package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hazyhaar/rankwatch/rank"
)

// Field-name cascades for the catalog's JSON endpoints. The endpoints
// are undocumented and the field spelling varies between them, so every
// logical field carries several candidates.
var (
	listFields    = []string{"bestList", "goodsList", "list", "items", "data"}
	nameFields    = []string{"goodsNm", "prdNm", "name", "title"}
	brandFields   = []string{"brandNm", "brand"}
	urlFields     = []string{"goodsUrl", "url", "link"}
	idFields      = []string{"goodsNo", "prdNo", "itemNo"}
	orgPrcFields  = []string{"orgPrice", "originalPrice", "orgPrc"}
	salePrcFields = []string{"salePrice", "price", "salePrc", "finalPrice"}
	ratingFields  = []string{"reviewPoint", "rating", "score"}
)

// detailURLFormat turns a bare product id into a canonical detail URL so
// identity resolution works the same for JSON and HTML acquisitions.
const detailURLFormat = "%s/store/goods/getGoodsDetail.do?goodsNo=%s"

// FromPayload extracts catalog entries from a JSON response body. The
// payload may be a bare array of item objects or an object wrapping the
// array under one of the known list fields, at the top level or one
// level down. Returns ErrStructureMismatch when no recognizable item
// list is found.
func FromPayload(body []byte, cfg Config) ([]rank.Entry, error) {
	cfg.applyDefaults()

	items, err := itemList(body)
	if err != nil {
		return nil, err
	}

	var entries []rank.Entry
	for _, raw := range items {
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) != nil {
			continue
		}
		e, ok := entryFromObject(obj, cfg)
		if ok {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return nil, ErrStructureMismatch
	}
	return entries, nil
}

func itemList(body []byte) ([]json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err == nil {
		return arr, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	if arr := listIn(obj); arr != nil {
		return arr, nil
	}
	// Some endpoints nest the list one level down ({"data": {"bestList": [...]}}).
	for _, v := range obj {
		var inner map[string]json.RawMessage
		if json.Unmarshal(v, &inner) != nil {
			continue
		}
		if arr := listIn(inner); arr != nil {
			return arr, nil
		}
	}
	return nil, ErrStructureMismatch
}

func listIn(obj map[string]json.RawMessage) []json.RawMessage {
	for _, f := range listFields {
		raw, ok := obj[f]
		if !ok {
			continue
		}
		var arr []json.RawMessage
		if json.Unmarshal(raw, &arr) == nil && len(arr) > 0 {
			return arr
		}
	}
	return nil
}

func entryFromObject(obj map[string]json.RawMessage, cfg Config) (rank.Entry, bool) {
	rawName := stringField(obj, nameFields)
	link := strings.TrimSpace(stringField(obj, urlFields))
	if link == "" {
		if id := stringField(obj, idFields); id != "" {
			link = fmt.Sprintf(detailURLFormat, strings.TrimRight(cfg.BaseURL, "/"), id)
		}
	} else {
		link = absoluteURL(cfg.BaseURL, link)
	}
	if rawName == "" && link == "" {
		return rank.Entry{}, false
	}

	name := rank.CleanTitle(rawName)
	brand := stringField(obj, brandFields)
	if brand == "" {
		brand = rank.ExtractBrand(name)
	}
	original := intField(obj, orgPrcFields)
	sale := intField(obj, salePrcFields)
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
		Rating:        stringField(obj, ratingFields),
	}
	return e, true
}

// stringField returns the first candidate present as a string or a
// number (rendered back to text).
func stringField(obj map[string]json.RawMessage, candidates []string) string {
	for _, f := range candidates {
		raw, ok := obj[f]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if json.Unmarshal(raw, &n) == nil && n.String() != "" {
			return n.String()
		}
	}
	return ""
}

// intField returns the first candidate present as a number or a numeric
// display string ("12,900원" included).
func intField(obj map[string]json.RawMessage, candidates []string) int {
	for _, f := range candidates {
		raw, ok := obj[f]
		if !ok {
			continue
		}
		var n float64
		if json.Unmarshal(raw, &n) == nil {
			return int(n)
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if v := rank.ParseAmount(s); v > 0 {
				return v
			}
		}
	}
	return 0
}
