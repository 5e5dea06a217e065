// Package document renders a QuoteRequest into a quotation document.
package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/quotedesk/quotedesk/internal/extract"
)

// Artifact is a rendered quotation: the bytes plus where they were written.
// Path is empty when the renderer has no output directory.
type Artifact struct {
	Filename string
	Path     string
	Data     []byte
}

// Renderer turns a quote record into a deliverable document.
type Renderer interface {
	Render(q *extract.QuoteRequest) (*Artifact, error)
}

// PDFRenderer produces an A4 quotation PDF. When OutputDir is set each
// artifact is also written to disk for the record.
type PDFRenderer struct {
	CompanyName string // seller name shown in the header
	OutputDir   string
	now         func() time.Time
}

func NewPDFRenderer(companyName, outputDir string) *PDFRenderer {
	return &PDFRenderer{
		CompanyName: companyName,
		OutputDir:   outputDir,
		now:         time.Now,
	}
}

var reUnsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename builds the artifact name: Quotation_<Customer>_<date>.pdf with
// anything shell-hostile squeezed out of the customer name.
func (r *PDFRenderer) Filename(q *extract.QuoteRequest) string {
	customer := reUnsafeFilename.ReplaceAllString(strings.ReplaceAll(q.CustomerName, " ", "_"), "")
	if customer == "" {
		customer = "Customer"
	}
	return fmt.Sprintf("Quotation_%s_%s.pdf", customer, r.now().Format("2006-01-02"))
}

func (r *PDFRenderer) Render(q *extract.QuoteRequest) (*Artifact, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Quotation", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, r.CompanyName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "QUOTATION", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	if q.QuoteNumber != "" {
		pdf.CellFormat(0, 6, "Quotation No: "+q.QuoteNumber, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Date: "+r.now().Format("02 Jan 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, "To:", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, q.CustomerName, "", 1, "L", false, 0, "")
	if q.CompanyName != "" {
		pdf.CellFormat(0, 6, q.CompanyName, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, q.Email, "", 1, "L", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Product", q.ProductDescription},
		{"Quantity", q.Quantity + " " + q.Units},
		{"Rate", "Rs. " + q.Rate},
	}
	if q.HSNCode != "" {
		rows = append(rows, [2]string{"HSN Code", q.HSNCode})
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(50, 8, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(130, 8, "Details", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.CellFormat(50, 8, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(130, 8, row[1], "1", 1, "L", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, "This quotation is valid for 30 days from the date of issue.", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render quotation pdf: %w", err)
	}

	art := &Artifact{
		Filename: r.Filename(q),
		Data:     buf.Bytes(),
	}
	if r.OutputDir != "" {
		if err := os.MkdirAll(r.OutputDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		art.Path = filepath.Join(r.OutputDir, art.Filename)
		if err := os.WriteFile(art.Path, art.Data, 0600); err != nil {
			return nil, fmt.Errorf("failed to write quotation pdf: %w", err)
		}
	}
	return art, nil
}
