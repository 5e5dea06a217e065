package extract

import "regexp"

// A strategy is one full-message template: a single pattern capturing every
// field in one pass. Strategies are tried in order and the first one that
// matches the whole message wins. Keeping them as named entries (instead of
// one giant alternation) lets each be tested on its own.
type strategy struct {
	name string
	re   *regexp.Regexp
}

const (
	// Sub-patterns shared by the templates. The connective before the
	// customer name varies across real messages ("for", "to",
	// "customer name is"); units and company are optional everywhere.
	reIntro   = `^quote\s*(?:no\.?|number|#)?\s*(?P<qno>\d+)?[\s,]*(?:customer\s+name\s+is|for|to)\s+`
	reName    = `(?P<name>[A-Za-z][A-Za-z .]*?)`
	reCompany = `(?:\s+at\s+(?P<company>[^,\d][^,]*?))?`
	reQty     = `(?P<qty>\d{1,7})\s*(?P<units>[A-Za-z]{2,6}\.?)?`
	reProduct = `\s+(?P<product>.+?)`
	reRate    = `\s+(?:at|rate|@)\s*(?:rs\.?|inr)?\s*(?P<rate>\d{3,})`
	reHSN     = `(?:[\s,]*hsn\s*(?:code)?\s*:?\s*(?P<hsn>\d{4,8}))?`
	reEmail   = `(?P<email>[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`
)

// Ordered list; most specific first. The canonical spoken shape is
//
//	quote 110 for Raju at Raj Pvt Ltd, 500 pcs 3in SS 316L sheets at 25000, hsn 7219, email raju@example.com
//
// and the alternates cover the email clause arriving before the quantity
// clause, which some senders prefer.
var strategies = []strategy{
	{
		name: "quantity-then-email",
		re: regexp.MustCompile(`(?i)` + reIntro + reName + reCompany +
			`\s*,\s*` + reQty + reProduct + reRate + reHSN +
			`[\s,]*(?:email\s*:?\s*)?` + reEmail + `[\s.]*$`),
	},
	{
		name: "email-then-quantity",
		re: regexp.MustCompile(`(?i)` + reIntro + reName + reCompany +
			`\s*,\s*(?:email\s*:?\s*)?` + reEmail +
			`\s*,\s*` + reQty + reProduct + reRate + reHSN + `[\s.]*$`),
	},
}

// matchStrategy runs the templates in order and builds a QuoteRequest from
// the first full match. The second return is the strategy name, kept for
// diagnostics; ok is false when no template covers the message.
func matchStrategy(text string) (*QuoteRequest, string, bool) {
	for _, s := range strategies {
		m := s.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		fields := make(map[string]string, len(m))
		for i, group := range s.re.SubexpNames() {
			if group != "" && m[i] != "" {
				fields[group] = m[i]
			}
		}
		// A bare unit token can swallow the first word of the product
		// when the message has no real unit. Give it back.
		if NormalizeUnits(fields["units"]) == "" && fields["units"] != "" {
			fields["product"] = fields["units"] + " " + fields["product"]
			fields["units"] = ""
		}
		q := &QuoteRequest{
			QuoteNumber:        fields["qno"],
			CustomerName:       fields["name"],
			CompanyName:        fields["company"],
			Quantity:           fields["qty"],
			Units:              fields["units"],
			ProductDescription: fields["product"],
			Rate:               fields["rate"],
			HSNCode:            fields["hsn"],
			Email:              fields["email"],
		}
		return q, s.name, true
	}
	return nil, "", false
}
