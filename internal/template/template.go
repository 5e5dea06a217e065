package template

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
	"time"

	"github.com/quotedesk/quotedesk/internal/extract"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// QuoteData contains all data available to templates.
type QuoteData struct {
	QuoteNumber        string
	CustomerName       string
	CompanyName        string
	Quantity           string
	Units              string
	ProductDescription string
	Rate               string
	HSNCode            string
	Email              string

	SellerName string
	Date       string
	Year       int
	Reason     string // failure replies only
}

// Email represents a rendered email ready to send
type Email struct {
	Subject string
	Body    string
}

// Engine renders the quotation email body and the WhatsApp replies.
type Engine struct {
	templates  map[string]*template.Template
	sellerName string
}

func NewEngine(sellerName string) (*Engine, error) {
	e := &Engine{
		templates:  make(map[string]*template.Template),
		sellerName: sellerName,
	}

	templateNames := []string{"quote_email", "reply_sent", "reply_failed"}
	for _, name := range templateNames {
		content, err := embeddedTemplates.ReadFile("templates/" + name + ".tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded template %s: %w", name, err)
		}

		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		e.templates[name] = tmpl
	}

	return e, nil
}

func (e *Engine) data(q *extract.QuoteRequest) QuoteData {
	now := time.Now()
	d := QuoteData{
		SellerName: e.sellerName,
		Date:       now.Format("January 2, 2006"),
		Year:       now.Year(),
	}
	if q != nil {
		d.QuoteNumber = q.QuoteNumber
		d.CustomerName = q.CustomerName
		d.CompanyName = q.CompanyName
		d.Quantity = q.Quantity
		d.Units = q.Units
		d.ProductDescription = q.ProductDescription
		d.Rate = q.Rate
		d.HSNCode = q.HSNCode
		d.Email = q.Email
	}
	return d
}

func (e *Engine) render(name string, data QuoteData) (string, error) {
	tmpl, ok := e.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template: %s", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderEmail generates the quotation email for a parsed request.
func (e *Engine) RenderEmail(q *extract.QuoteRequest) (*Email, error) {
	body, err := e.render("quote_email", e.data(q))
	if err != nil {
		return nil, err
	}

	subject := "Quotation"
	if q.QuoteNumber != "" {
		subject = fmt.Sprintf("Quotation %s", q.QuoteNumber)
	}
	if q.CompanyName != "" {
		subject += " - " + q.CompanyName
	}

	return &Email{Subject: subject, Body: body}, nil
}

// RenderSentReply generates the WhatsApp confirmation after a quotation
// was emailed.
func (e *Engine) RenderSentReply(q *extract.QuoteRequest) (string, error) {
	return e.render("reply_sent", e.data(q))
}

// RenderFailedReply generates the WhatsApp reply when a message could not be
// processed. reason is shown to the sender, so keep it human.
func (e *Engine) RenderFailedReply(reason string) (string, error) {
	d := e.data(nil)
	d.Reason = reason
	return e.render("reply_failed", d)
}

// AvailableTemplates returns the list of loaded template names.
func (e *Engine) AvailableTemplates() []string {
	templates := make([]string, 0, len(e.templates))
	for name := range e.templates {
		templates = append(templates, name)
	}
	return templates
}
