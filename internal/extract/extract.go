// Package extract turns a free-text quotation message into a QuoteRequest.
//
// Extraction is a pure function of the message text. It first tries an
// ordered list of full-message templates that capture every field in one
// pass, then falls back to independent per-field searches. Either way the
// result goes through one normalization and validation pass, so callers get
// a complete record or an error, never something in between.
package extract

import (
	"regexp"
	"strings"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// Extract parses a raw quotation message. The only pre-match normalization
// is collapsing whitespace runs to single spaces. Returns an error wrapping
// ErrParseFailure when the message has no usable structure or a required
// field is missing.
func Extract(raw string) (*QuoteRequest, error) {
	text := strings.TrimSpace(reWhitespace.ReplaceAllString(raw, " "))
	if text == "" {
		return nil, ErrParseFailure
	}

	// Templates first: they constrain field order, so they produce fewer
	// false positives than hunting each field on its own.
	if q, _, ok := matchStrategy(text); ok {
		if err := q.finish(); err == nil {
			return q, nil
		}
		// A template match with a missing required field is treated the
		// same as no match; the heuristic pass may still recover it.
	}

	q := matchHeuristic(text)
	if err := q.finish(); err != nil {
		return nil, err
	}
	return q, nil
}

// StrategyNames lists the template strategies in the order they are tried.
func StrategyNames() []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.name
	}
	return names
}
