package rank

import (
	"strconv"
	"strings"
	"unicode"
)

// Promotional tokens the source prepends to product titles. Matched as
// whole tokens only, so a brand that happens to contain one is safe.
var promoKeywords = map[string]bool{
	"오특":   true,
	"오늘드림": true,
	"올영픽":  true,
	"단독":   true,
	"증정":   true,
	"한정":   true,
	"BEST": true,
	"SALE": true,
}

// Bundle markers that disqualify the first token from being a brand.
var bundleKeywords = map[string]bool{
	"기획":  true,
	"세트":  true,
	"더블":  true,
	"리필":  true,
	"대용량": true,
}

// maxPromoSegment is the longest leading "tag | " segment that is still
// treated as promotional. Longer segments are assumed to be part of the
// real title.
const maxPromoSegment = 12

// CleanTitle strips promotional decoration from a raw product title:
// leading [bracketed] tags, leading "tag | " segments, known promo
// keywords, and redundant whitespace. It is idempotent and never fails;
// pathological input degrades to a best-effort cleaned string.
func CleanTitle(raw string) string {
	s := raw
	// One strip can expose another (a keyword hiding a bracket group and
	// vice versa), so run to a fixpoint. Real titles settle in one or two
	// passes; the cap only guards against adversarial input.
	for i := 0; i < 4; i++ {
		next := cleanTitleOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func cleanTitleOnce(s string) string {
	s = strings.TrimSpace(s)
	s = stripLeadingBrackets(s)
	s = stripPromoSegments(s)
	s = stripPromoKeywords(s)
	return collapseSpace(s)
}

// stripLeadingBrackets removes one or more leading "[...]" groups.
func stripLeadingBrackets(s string) string {
	for {
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "[") {
			return s
		}
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return s
		}
		s = s[end+1:]
	}
}

// stripPromoSegments removes leading "tag | tag | ..." segments. Only
// short segments are treated as tags; a long first segment is taken to
// be the title itself (some products legitimately contain a pipe).
func stripPromoSegments(s string) string {
	for {
		idx := strings.Index(s, "|")
		if idx < 0 {
			return s
		}
		head := strings.TrimSpace(s[:idx])
		if head == "" || len([]rune(head)) > maxPromoSegment || strings.Contains(head, " ") {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
}

func stripPromoKeywords(s string) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if promoKeywords[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractBrand guesses the brand from a cleaned title: the first token,
// unless that token looks like a quantity or bundle marker ("1+1",
// "2개입", "기획"), in which case the second token is used. Best effort;
// returns "" when nothing plausible is present.
func ExtractBrand(cleaned string) string {
	fields := strings.FieldsFunc(cleaned, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '/'
	})
	if len(fields) == 0 {
		return ""
	}
	first := strings.Trim(fields[0], "()[]")
	if !looksLikeQuantity(first) {
		return first
	}
	if len(fields) > 1 {
		return strings.Trim(fields[1], "()[]")
	}
	return ""
}

func looksLikeQuantity(tok string) bool {
	if tok == "" {
		return true
	}
	r := []rune(tok)[0]
	if unicode.IsDigit(r) || r == '+' {
		return true
	}
	return bundleKeywords[tok]
}

// ParseAmount extracts an integer currency amount from display text
// ("12,900원" → 12900). All digit runs are concatenated after removing
// thousands separators, mirroring how the source renders prices. Returns
// 0 when no digits are present or the value would overflow.
func ParseAmount(text string) int {
	var b strings.Builder
	for _, r := range strings.ReplaceAll(text, ",", "") {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || b.Len() > 12 {
		return 0
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}

// DiscountPct computes floor((original-sale)/original*100) when
// original > sale > 0, else 0.
func DiscountPct(original, sale int) int {
	if original <= sale || sale <= 0 {
		return 0
	}
	return (original - sale) * 100 / original
}
