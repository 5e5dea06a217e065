package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quotedesk/quotedesk/internal/extract"
)

type Status string

const (
	StatusSent           Status = "sent"
	StatusDeliveryFailed Status = "delivery_failed"
	StatusRenderFailed   Status = "render_failed"
	StatusParseFailed    Status = "parse_failed"
)

// Extractor records which pass produced the quote.
type Extractor string

const (
	ExtractorRegex Extractor = "regex"
	ExtractorAI    Extractor = "ai"
	ExtractorNone  Extractor = ""
)

// Record is one processed WhatsApp message and its outcome.
type Record struct {
	ID           int64
	MessageID    string // WhatsApp message id
	Sender       string // sender phone number
	Quote        extract.QuoteRequest
	Extractor    Extractor
	Status       Status
	Error        string
	ArtifactPath string
	EmailID      string // provider message id for the sent email
	ProcessedAt  time.Time
	CreatedAt    time.Time
}

type Store struct {
	db *sql.DB
}

// scanRecord handles nullable columns when scanning a row
func scanRecord(scanner interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var processedAt, createdAt sql.NullTime
	var errStr, artifactPath, emailID sql.NullString

	err := scanner.Scan(&r.ID, &r.MessageID, &r.Sender,
		&r.Quote.QuoteNumber, &r.Quote.CustomerName, &r.Quote.CompanyName,
		&r.Quote.Quantity, &r.Quote.Units, &r.Quote.ProductDescription,
		&r.Quote.Rate, &r.Quote.HSNCode, &r.Quote.Email,
		&r.Extractor, &r.Status, &errStr, &artifactPath, &emailID,
		&processedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	r.Error = errStr.String
	r.ArtifactPath = artifactPath.String
	r.EmailID = emailID.String
	r.ProcessedAt = processedAt.Time
	r.CreatedAt = createdAt.Time
	return &r, nil
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		quote_number TEXT,
		customer_name TEXT,
		company_name TEXT,
		quantity TEXT,
		units TEXT,
		product_description TEXT,
		rate TEXT,
		hsn_code TEXT,
		email TEXT,
		extractor TEXT,
		status TEXT NOT NULL,
		error TEXT,
		artifact_path TEXT,
		email_id TEXT,
		processed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_message_id ON quotes(message_id);
	CREATE INDEX IF NOT EXISTS idx_sender ON quotes(sender);
	CREATE INDEX IF NOT EXISTS idx_quotes_status ON quotes(status);
	CREATE INDEX IF NOT EXISTS idx_processed_at ON quotes(processed_at);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

const recordColumns = `id, message_id, sender,
	quote_number, customer_name, company_name, quantity, units,
	product_description, rate, hsn_code, email,
	extractor, status, error, artifact_path, email_id, processed_at, created_at`

func (s *Store) Add(record *Record) error {
	query := `
	INSERT INTO quotes (message_id, sender,
		quote_number, customer_name, company_name, quantity, units,
		product_description, rate, hsn_code, email,
		extractor, status, error, artifact_path, email_id, processed_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		record.MessageID,
		record.Sender,
		record.Quote.QuoteNumber,
		record.Quote.CustomerName,
		record.Quote.CompanyName,
		record.Quote.Quantity,
		record.Quote.Units,
		record.Quote.ProductDescription,
		record.Quote.Rate,
		record.Quote.HSNCode,
		record.Quote.Email,
		record.Extractor,
		record.Status,
		record.Error,
		record.ArtifactPath,
		record.EmailID,
		record.ProcessedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

func (s *Store) GetRecent(limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM quotes ORDER BY id DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func (s *Store) GetBySender(sender string, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM quotes WHERE sender = ? ORDER BY id DESC LIMIT ?`

	rows, err := s.db.Query(query, sender, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func (s *Store) GetStats() (total, sent, failed int, err error) {
	query := `SELECT COUNT(*), SUM(CASE WHEN status='sent' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status!='sent' THEN 1 ELSE 0 END) FROM quotes`

	var sentNull, failedNull sql.NullInt64
	err = s.db.QueryRow(query).Scan(&total, &sentNull, &failedNull)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get stats: %w", err)
	}
	return total, int(sentNull.Int64), int(failedNull.Int64), nil
}

func (s *Store) GetMonthlyStats() (sent, failed int, err error) {
	now := time.Now()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	query := `SELECT SUM(CASE WHEN status='sent' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status!='sent' THEN 1 ELSE 0 END) FROM quotes WHERE processed_at >= ?`

	var sentNull, failedNull sql.NullInt64
	err = s.db.QueryRow(query, startOfMonth).Scan(&sentNull, &failedNull)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get monthly stats: %w", err)
	}
	return int(sentNull.Int64), int(failedNull.Int64), nil
}

func (s *Store) Close() error { return s.db.Close() }
