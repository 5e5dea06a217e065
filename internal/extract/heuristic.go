package extract

import (
	"regexp"
	"strings"
)

// Per-field patterns for the fallback pass. Each field is hunted down
// independently, so a reordered or partly mangled message can still yield a
// complete record.
var (
	reQuoteNo  = regexp.MustCompile(`(?i)\bquote\s*(?:no\.?|number|#)?\s*:?\s*(\d+)`)
	reEmailAny = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	reRateKw   = regexp.MustCompile(`(?i)(?:\b(?:rate|at)\b|@)\s*:?\s*(?:rs\.?|inr)?\s*(\d{3,})`)
	reHSNKw    = regexp.MustCompile(`(?i)\bhsn\s*(?:code)?\s*:?\s*(\d{4,8})`)

	unitKeywords = `pieces|piece|pcs|psc|pc|nos|no|kgs|kg|mt|tons|tonne|ton|bundle|bndl`

	// Quantity anchored to a keyword beats a bare number, which keeps the
	// rate and the quote number from bleeding into the quantity.
	reQtyKeyword = regexp.MustCompile(`(?i)\b(?:quantity|qty)\s*:?\s*(\d{1,7})\s*(` + unitKeywords + `)?\b`)
	reQtyUnits   = regexp.MustCompile(`(?i)\b(\d{1,7})\s*(` + unitKeywords + `)\b`)
	reQtyBare    = regexp.MustCompile(`\b(\d{1,7})\b`)

	reCustomerKw = regexp.MustCompile(`(?i)\b(?:customer\s+name\s+is|for|to)\s+([A-Za-z][A-Za-z .]*?)(?:\s+at\s+|\s*,|\s*$)`)
	reCompanyKw  = regexp.MustCompile(`(?i)\bat\s+([^,\d][^,]*?)(?:\s*,|\s*$)`)

	// Clause keywords that terminate the product span.
	reProductStop = regexp.MustCompile(`(?i)\b(?:quantity|qty|rate|hsn|email)\b|\s+(?:at|@)\s*(?:rs\.?|inr)?\s*\d{3,}`)

	reLeadingNoise = regexp.MustCompile(`(?i)^(?:(?:of|for|the|an?|product|item)\b|[\s,:.-])+`)
)

// matchHeuristic is the fallback when no full-message template applies.
// Fields are located independently; finish() decides whether enough of the
// record survived.
func matchHeuristic(text string) *QuoteRequest {
	q := &QuoteRequest{}

	if m := reQuoteNo.FindStringSubmatch(text); m != nil {
		q.QuoteNumber = m[1]
	}
	var emailSpan []int
	if loc := reEmailAny.FindStringIndex(text); loc != nil {
		emailSpan = loc
		q.Email = text[loc[0]:loc[1]]
	}
	if m := reHSNKw.FindStringSubmatch(text); m != nil {
		q.HSNCode = m[1]
	}
	if m := reRateKw.FindStringSubmatch(text); m != nil {
		q.Rate = m[1]
	}

	qtyEnd := findQuantity(q, text, emailSpan)

	if loc := reCustomerKw.FindStringSubmatchIndex(text); loc != nil {
		q.CustomerName = text[loc[2]:loc[3]]
		// Company follows the customer clause's "at"; search from the
		// clause onward so an "at" elsewhere is not picked up.
		if m := reCompanyKw.FindStringSubmatch(text[loc[0]:]); m != nil {
			q.CompanyName = strings.TrimSpace(m[1])
		}
	}

	q.ProductDescription = findProduct(text, qtyEnd)
	return q
}

// findQuantity fills quantity and units, returning the index just past the
// quantity clause (or -1). Keyword-anchored matches win; a digit run next to
// a unit token comes second; a bare digit run is the last resort and skips
// spans already claimed by the quote number, rate, HSN, or email.
func findQuantity(q *QuoteRequest, text string, emailSpan []int) int {
	if m := reQtyKeyword.FindStringSubmatchIndex(text); m != nil {
		q.Quantity = text[m[2]:m[3]]
		if m[4] >= 0 {
			q.Units = text[m[4]:m[5]]
		}
		return m[1]
	}
	if m := reQtyUnits.FindStringSubmatchIndex(text); m != nil {
		q.Quantity = text[m[2]:m[3]]
		q.Units = text[m[4]:m[5]]
		return m[1]
	}

	claimed := claimedSpans(text, emailSpan)
	for _, m := range reQtyBare.FindAllStringSubmatchIndex(text, -1) {
		if overlaps(m[2], m[3], claimed) {
			continue
		}
		q.Quantity = text[m[2]:m[3]]
		return m[1]
	}
	return -1
}

// claimedSpans marks digit runs that belong to other fields.
func claimedSpans(text string, emailSpan []int) [][2]int {
	var spans [][2]int
	if emailSpan != nil {
		spans = append(spans, [2]int{emailSpan[0], emailSpan[1]})
	}
	for _, re := range []*regexp.Regexp{reQuoteNo, reRateKw, reHSNKw} {
		if m := re.FindStringSubmatchIndex(text); m != nil {
			spans = append(spans, [2]int{m[2], m[3]})
		}
	}
	return spans
}

func overlaps(start, end int, spans [][2]int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

// findProduct takes the span between the quantity clause and the next field
// keyword (or rate clause) as the product description.
func findProduct(text string, from int) string {
	if from < 0 || from >= len(text) {
		return ""
	}
	rest := text[from:]
	if loc := reProductStop.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	rest = reLeadingNoise.ReplaceAllString(rest, "")
	return strings.Trim(strings.TrimSpace(rest), ",.")
}
