package email

import (
	"strings"
	"testing"

	"github.com/quotedesk/quotedesk/internal/config"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"raju@example.com", true},
		{"first.last+tag@sub.example.co.in", true},
		{"not-an-email", false},
		{"@example.com", false},
		{"evil@example.com\r\nBcc: victim@example.com", false},
		{"a@example.com,b@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		err := ValidateEmail(tt.email)
		if tt.valid && err != nil {
			t.Errorf("ValidateEmail(%q): unexpected error %v", tt.email, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("ValidateEmail(%q): expected error", tt.email)
		}
	}
}

func TestValidateMessage(t *testing.T) {
	msg := Message{
		From:    "quotes@example.com",
		To:      "raju@example.com",
		Subject: "Quotation 110",
	}
	if err := validateMessage(msg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	msg.Subject = "Quotation\r\nBcc: victim@example.com"
	if err := validateMessage(msg); err == nil {
		t.Error("expected error for CRLF in subject")
	}
}

func TestNewSender(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{"", "smtp", false},
		{"smtp", "smtp", false},
		{"resend", "resend", false},
		{"sendgrid", "sendgrid", false},
		{"pigeon", "", true},
	}

	for _, tt := range tests {
		s, err := NewSender(config.EmailConfig{Provider: tt.provider, APIKey: "k", From: "a@b.co"})
		if tt.wantErr {
			if err == nil {
				t.Errorf("provider %q: expected error", tt.provider)
			}
			continue
		}
		if err != nil {
			t.Errorf("provider %q: unexpected error %v", tt.provider, err)
			continue
		}
		if s.Name() != tt.wantName {
			t.Errorf("provider %q: got sender %q", tt.provider, s.Name())
		}
	}
}

func TestBuildMIMEPlain(t *testing.T) {
	raw, err := buildMIME(Message{
		From:    "quotes@example.com",
		To:      "raju@example.com",
		Subject: "Quotation 110",
		Body:    "Please find the quotation attached.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(raw)
	if !strings.Contains(s, "Content-Type: text/plain; charset=utf-8") {
		t.Errorf("plain message should be text/plain:\n%s", s)
	}
	if strings.Contains(s, "multipart/mixed") {
		t.Errorf("plain message must not be multipart:\n%s", s)
	}
}

func TestBuildMIMEAttachment(t *testing.T) {
	raw, err := buildMIME(Message{
		From:    "quotes@example.com",
		To:      "raju@example.com",
		Subject: "Quotation 110",
		Body:    "Please find the quotation attached.",
		Attachments: []Attachment{
			{Filename: "Quotation_Raju_2026-08-31.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(raw)
	for _, want := range []string{
		"multipart/mixed",
		"Content-Transfer-Encoding: base64",
		`attachment; filename="Quotation_Raju_2026-08-31.pdf"`,
		"application/pdf",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("message missing %q:\n%s", want, s)
		}
	}
}
