package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

const canonicalMsg = "quote 110 for Raju at Raj Pvt Ltd, 500 pcs 3in SS 316L sheets at 25000, hsn 7219, email raju@example.com"

func TestExtractCanonical(t *testing.T) {
	q, err := Extract(canonicalMsg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.QuoteNumber != "110" {
		t.Errorf("quote_number: got %q, want %q", q.QuoteNumber, "110")
	}
	if q.CustomerName != "Raju" {
		t.Errorf("customer_name: got %q, want %q", q.CustomerName, "Raju")
	}
	if q.CompanyName != "Raj Pvt Ltd" {
		t.Errorf("company_name: got %q, want %q", q.CompanyName, "Raj Pvt Ltd")
	}
	if q.Quantity != "500" {
		t.Errorf("quantity: got %q, want %q", q.Quantity, "500")
	}
	if q.Units != "Pcs" {
		t.Errorf("units: got %q, want %q", q.Units, "Pcs")
	}
	if !strings.Contains(q.ProductDescription, "3in SS 316L sheets") {
		t.Errorf("product_description: got %q, want it to contain %q", q.ProductDescription, "3in SS 316L sheets")
	}
	if q.Rate != "25000" {
		t.Errorf("rate: got %q, want %q", q.Rate, "25000")
	}
	if q.HSNCode != "7219" {
		t.Errorf("hsn_code: got %q, want %q", q.HSNCode, "7219")
	}
	if q.Email != "raju@example.com" {
		t.Errorf("email: got %q, want %q", q.Email, "raju@example.com")
	}
}

func TestExtractVariants(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want QuoteRequest
	}{
		{
			name: "no company clause",
			msg:  "quote 12 for Anita, 20 kgs copper wire at 4500, email anita@example.in",
			want: QuoteRequest{
				QuoteNumber:        "12",
				CustomerName:       "Anita",
				Quantity:           "20",
				Units:              "Kgs",
				ProductDescription: "copper wire",
				Rate:               "4500",
				Email:              "anita@example.in",
			},
		},
		{
			name: "email clause before quantity clause",
			msg:  "quote 110 for Raju at Raj Pvt Ltd, email raju@example.com, 500 pcs 3in SS 316L sheets at 25000, hsn 7219",
			want: QuoteRequest{
				QuoteNumber:        "110",
				CustomerName:       "Raju",
				CompanyName:        "Raj Pvt Ltd",
				Quantity:           "500",
				Units:              "Pcs",
				ProductDescription: "3in SS 316L sheets",
				Rate:               "25000",
				HSNCode:            "7219",
				Email:              "raju@example.com",
			},
		},
		{
			name: "customer name is connective",
			msg:  "quote 7 customer name is Suresh Kumar at Acme Steels, 25 ton tmt bars at 52000, hsn 72141, email suresh@acme.in",
			want: QuoteRequest{
				QuoteNumber:        "7",
				CustomerName:       "Suresh Kumar",
				CompanyName:        "Acme Steels",
				Quantity:           "25",
				Units:              "Ton",
				ProductDescription: "tmt bars",
				Rate:               "52000",
				HSNCode:            "72141",
				Email:              "suresh@acme.in",
			},
		},
		{
			name: "to connective with bundle units",
			msg:  "quote 3 to Mohan, 15 bundle rebar at 9000, email mohan@example.com",
			want: QuoteRequest{
				QuoteNumber:        "3",
				CustomerName:       "Mohan",
				Quantity:           "15",
				Units:              "Bundle",
				ProductDescription: "rebar",
				Rate:               "9000",
				Email:              "mohan@example.com",
			},
		},
		{
			name: "no quote number",
			msg:  "quote for Priya, 5 pcs gaskets at 1500, email priya@example.com",
			want: QuoteRequest{
				CustomerName:       "Priya",
				Quantity:           "5",
				Units:              "Pcs",
				ProductDescription: "gaskets",
				Rate:               "1500",
				Email:              "priya@example.com",
			},
		},
		{
			name: "rate keyword instead of at",
			msg:  "quote 2 for Asha, 50 kg pipes rate 800, email asha@example.org",
			want: QuoteRequest{
				QuoteNumber:        "2",
				CustomerName:       "Asha",
				Quantity:           "50",
				Units:              "Kgs",
				ProductDescription: "pipes",
				Rate:               "800",
				Email:              "asha@example.org",
			},
		},
		{
			name: "missing units defaults to pcs",
			msg:  "quote 44 for Vikram, 120 hex bolts at 3600, email vikram@example.com",
			want: QuoteRequest{
				QuoteNumber:        "44",
				CustomerName:       "Vikram",
				Quantity:           "120",
				Units:              "Pcs",
				ProductDescription: "hex bolts",
				Rate:               "3600",
				Email:              "vikram@example.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.msg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("got %+v\nwant %+v", *got, tt.want)
			}
		})
	}
}

func TestExtractHeuristicFallback(t *testing.T) {
	// No template matches a message with a preamble and labeled clauses;
	// the per-field pass has to reassemble it.
	msg := "Need quotation. quote 110. customer name is Raju at Raj Pvt Ltd, quantity 500 pcs, product steel sheets, rate 25000, hsn 7219, email raju@example.com"

	q, err := Extract(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := QuoteRequest{
		QuoteNumber:        "110",
		CustomerName:       "Raju",
		CompanyName:        "Raj Pvt Ltd",
		Quantity:           "500",
		Units:              "Pcs",
		ProductDescription: "steel sheets",
		Rate:               "25000",
		HSNCode:            "7219",
		Email:              "raju@example.com",
	}
	if !reflect.DeepEqual(*q, want) {
		t.Errorf("got %+v\nwant %+v", *q, want)
	}
}

func TestHeuristicCompanyAfterCustomerClause(t *testing.T) {
	// An "at" before the customer clause must not be read as the company.
	msg := "met him at the expo, quote 12 for Raju at Raj Pvt Ltd, 500 pcs sheets, rate 25000, email raju@example.com"

	q, err := Extract(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.CustomerName != "Raju" {
		t.Errorf("customer_name: got %q, want %q", q.CustomerName, "Raju")
	}
	if q.CompanyName != "Raj Pvt Ltd" {
		t.Errorf("company_name: got %q, want %q", q.CompanyName, "Raj Pvt Ltd")
	}
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"empty message", ""},
		{"whitespace only", "   \n\t  "},
		{"no quote keywords", "hello there"},
		{"chatter with a time", "hello there, meeting at 5pm"},
		{"missing email", "quote 12 for Anita, 20 kgs copper wire at 4500"},
		{"missing rate and quantity", "quote 12 for Anita, email anita@example.in"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Extract(tt.msg)
			if err == nil {
				t.Fatalf("expected failure, got %+v", q)
			}
			if !errors.Is(err, ErrParseFailure) {
				t.Errorf("error %v should wrap ErrParseFailure", err)
			}
			if q != nil {
				t.Errorf("failure must not carry a partial record, got %+v", q)
			}
		})
	}
}

func TestExtractMissingFieldDetail(t *testing.T) {
	_, err := Extract("quote 12 for Anita, 20 kgs copper wire at 4500")

	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if missing.Field != "email" {
		t.Errorf("field: got %q, want %q", missing.Field, "email")
	}
}

func TestNormalizeUnits(t *testing.T) {
	tests := map[string]string{
		"nos":    "Pcs",
		"Pieces": "Pcs",
		"PCS":    "Pcs",
		"psc":    "Pcs",
		"kg":     "Kgs",
		"kgs":    "Kgs",
		"mt":     "MT",
		"Ton":    "Ton",
		"bndl":   "Bundle",
		"crate":  "",
		"":       "",
	}
	for token, want := range tests {
		if got := NormalizeUnits(token); got != want {
			t.Errorf("NormalizeUnits(%q): got %q, want %q", token, got, want)
		}
	}
}

func TestExtractIdempotent(t *testing.T) {
	first, err := Extract(canonicalMsg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Extract(canonicalMsg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("extraction not idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestProductDescriptionTruncated(t *testing.T) {
	long := strings.Repeat("x", 3*MaxProductLen)
	msg := "quote 9 for Raju, 10 pcs " + long + " at 3000, email raju@example.com"

	q, err := Extract(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.ProductDescription) != MaxProductLen {
		t.Errorf("product_description length: got %d, want %d", len(q.ProductDescription), MaxProductLen)
	}
}

func TestProductDescriptionTruncatedMultibyte(t *testing.T) {
	long := "x" + strings.Repeat("Ø", 3*MaxProductLen)
	msg := "quote 9 for Raju, 10 pcs " + long + " at 3000, email raju@example.com"

	q, err := Extract(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := utf8.RuneCountInString(q.ProductDescription); got != MaxProductLen {
		t.Errorf("product_description runes: got %d, want %d", got, MaxProductLen)
	}
	if !utf8.ValidString(q.ProductDescription) {
		t.Error("truncation split a rune, product_description is not valid UTF-8")
	}
}

func TestWhitespaceCollapsed(t *testing.T) {
	msg := "quote   110\n for\tRaju at Raj Pvt Ltd,  500  pcs 3in SS 316L sheets at 25000,\nhsn 7219, email raju@example.com"

	q, err := Extract(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.CustomerName != "Raju" || q.Quantity != "500" || q.Rate != "25000" {
		t.Errorf("unexpected record after whitespace collapse: %+v", q)
	}
}

func TestStrategyOrder(t *testing.T) {
	want := []string{"quantity-then-email", "email-then-quantity"}
	if got := StrategyNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("strategy order: got %v, want %v", got, want)
	}
}
