package extract

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxProductLen caps the product description carried into documents and emails.
const MaxProductLen = 120

// QuoteRequest is the structured record extracted from a free-text message.
// It is either fully populated for all required fields or never returned at
// all; callers see an error instead of a partial record.
type QuoteRequest struct {
	QuoteNumber        string `json:"quote_number,omitempty"`
	CustomerName       string `json:"customer_name"`
	CompanyName        string `json:"company_name,omitempty"`
	Quantity           string `json:"quantity"`
	Units              string `json:"units"`
	ProductDescription string `json:"product_description"`
	Rate               string `json:"rate"`
	HSNCode            string `json:"hsn_code,omitempty"`
	Email              string `json:"email"`
}

// ErrParseFailure is returned when a message carries no usable quote data.
// Missing-field errors wrap it, so errors.Is(err, ErrParseFailure) covers both.
var ErrParseFailure = errors.New("no structured quote data found")

// MissingFieldError reports which required field could not be isolated.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return ErrParseFailure }

// Unit aliases collected from real messages. Keys are compared lowercase.
var unitAliases = map[string]string{
	"piece":  "Pcs",
	"pieces": "Pcs",
	"nos":    "Pcs",
	"no":     "Pcs",
	"pcs":    "Pcs",
	"pc":     "Pcs",
	"psc":    "Pcs", // common typo
	"kg":     "Kgs",
	"kgs":    "Kgs",
	"mt":     "MT",
	"ton":    "Ton",
	"tons":   "Ton",
	"tonne":  "Ton",
	"bundle": "Bundle",
	"bndl":   "Bundle",
}

// NormalizeUnits maps a raw unit token to its canonical form. Unknown or
// empty tokens return "", and the caller decides the default.
func NormalizeUnits(token string) string {
	return unitAliases[strings.ToLower(strings.TrimSpace(token))]
}

var titleCaser = cases.Title(language.Und)

// Normalize applies the shared normalization pass and required-field check
// to a record produced outside the text extractor, such as the AI fallback.
func (q *QuoteRequest) Normalize() error { return q.finish() }

// finish applies the shared normalization pass and required-field check.
// Every extraction path, template or heuristic, funnels through here.
func (q *QuoteRequest) finish() error {
	q.QuoteNumber = strings.TrimSpace(q.QuoteNumber)
	q.CustomerName = titleCaser.String(strings.TrimSpace(q.CustomerName))
	q.CompanyName = strings.TrimSpace(q.CompanyName)
	q.Quantity = strings.TrimSpace(q.Quantity)
	q.Rate = strings.TrimSpace(q.Rate)
	q.HSNCode = strings.TrimSpace(q.HSNCode)
	q.Email = strings.TrimSpace(strings.Trim(q.Email, ".,"))

	q.ProductDescription = strings.Trim(strings.TrimSpace(q.ProductDescription), ",.")
	// Cap counts characters, not bytes; byte slicing could split a rune.
	if runes := []rune(q.ProductDescription); len(runes) > MaxProductLen {
		q.ProductDescription = string(runes[:MaxProductLen])
	}

	if canonical := NormalizeUnits(q.Units); canonical != "" {
		q.Units = canonical
	} else if q.Quantity != "" {
		q.Units = "Pcs"
	} else {
		q.Units = ""
	}

	return q.validate()
}

func (q *QuoteRequest) validate() error {
	switch {
	case q.CustomerName == "":
		return &MissingFieldError{Field: "customer_name"}
	case q.Quantity == "":
		return &MissingFieldError{Field: "quantity"}
	case q.ProductDescription == "":
		return &MissingFieldError{Field: "product_description"}
	case q.Rate == "":
		return &MissingFieldError{Field: "rate"}
	case q.Email == "":
		return &MissingFieldError{Field: "email"}
	}
	return nil
}
