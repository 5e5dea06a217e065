package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/quotedesk/quotedesk/internal/extract"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(messageID string, status Status) *Record {
	return &Record{
		MessageID: messageID,
		Sender:    "919876543210",
		Quote: extract.QuoteRequest{
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
		Extractor:    ExtractorRegex,
		Status:       status,
		ArtifactPath: "/tmp/Quotation_Raju_2026-08-31.pdf",
		EmailID:      "smtp-abc",
		ProcessedAt:  time.Now(),
	}
}

func TestAddAndGetRecent(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord("wamid.1", StatusSent)
	if err := store.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rec.ID == 0 {
		t.Error("Add should set the record id")
	}

	records, err := store.GetRecent(10)
	if err != nil {
		t.Fatalf("GetRecent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]
	if got.MessageID != "wamid.1" || got.Sender != "919876543210" {
		t.Errorf("record: %+v", got)
	}
	if got.Quote.CustomerName != "Raju" || got.Quote.Rate != "25000" {
		t.Errorf("quote fields: %+v", got.Quote)
	}
	if got.Extractor != ExtractorRegex || got.Status != StatusSent {
		t.Errorf("extractor/status: %q/%q", got.Extractor, got.Status)
	}
}

func TestGetRecentOrdering(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"wamid.1", "wamid.2", "wamid.3"} {
		if err := store.Add(testRecord(id, StatusSent)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	records, err := store.GetRecent(2)
	if err != nil {
		t.Fatalf("GetRecent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].MessageID != "wamid.3" || records[1].MessageID != "wamid.2" {
		t.Errorf("newest first: got %q, %q", records[0].MessageID, records[1].MessageID)
	}
}

func TestGetBySender(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord("wamid.1", StatusSent)
	if err := store.Add(rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	other := testRecord("wamid.2", StatusSent)
	other.Sender = "918888888888"
	if err := store.Add(other); err != nil {
		t.Fatalf("Add: %v", err)
	}

	records, err := store.GetBySender("919876543210", 10)
	if err != nil {
		t.Fatalf("GetBySender: %v", err)
	}
	if len(records) != 1 || records[0].MessageID != "wamid.1" {
		t.Errorf("got %+v", records)
	}
}

func TestGetStats(t *testing.T) {
	store := newTestStore(t)

	if err := store.Add(testRecord("wamid.1", StatusSent)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	fail := testRecord("wamid.2", StatusParseFailed)
	fail.Extractor = ExtractorNone
	fail.Error = "missing required field: email"
	if err := store.Add(fail); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(testRecord("wamid.3", StatusDeliveryFailed)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	total, sent, failed, err := store.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if total != 3 || sent != 1 || failed != 2 {
		t.Errorf("stats: total %d sent %d failed %d", total, sent, failed)
	}
}

func TestGetStatsEmpty(t *testing.T) {
	store := newTestStore(t)
	total, sent, failed, err := store.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if total != 0 || sent != 0 || failed != 0 {
		t.Errorf("empty stats: total %d sent %d failed %d", total, sent, failed)
	}
}
