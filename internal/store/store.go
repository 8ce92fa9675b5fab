// Package store persists parsed email records and attachment metadata in
// SQLite, keyed by message id so repeated ingestion of the same message is
// idempotent.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/felo/mail-ingest/internal/attachment"
	"github.com/felo/mail-ingest/internal/parser"
)

const schema = `
CREATE TABLE IF NOT EXISTS emails (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id TEXT UNIQUE NOT NULL,
    from_address TEXT,
    from_name TEXT,
    from_original TEXT,
    recipients TEXT,
    cc TEXT,
    bcc TEXT,
    subject TEXT,
    body_normalized TEXT,
    headers TEXT,
    date DATETIME,
    size INTEGER,
    recovered BOOLEAN DEFAULT 0,
    ingested_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS attachments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email_id INTEGER NOT NULL,
    filename TEXT,
    content_type TEXT,
    size INTEGER,
    category TEXT,
    processed BOOLEAN DEFAULT 0,
    metadata TEXT,
    error TEXT,
    FOREIGN KEY(email_id) REFERENCES emails(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(date DESC);
CREATE INDEX IF NOT EXISTS idx_attachments_email_id ON attachments(email_id);
`

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at dbPath and initializes the schema.
// ":memory:" opens an in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// The _time_format=sqlite parameter tells the driver to parse RFC3339 timestamps
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoredAttachment is the persisted metadata of one processed attachment.
type StoredAttachment struct {
	Filename    string          `json:"filename"`
	ContentType string          `json:"contentType"`
	Size        int64           `json:"size"`
	Category    string          `json:"category,omitempty"`
	Processed   bool            `json:"processed"`
	Metadata    json.RawMessage `json:"metadata"`
	Error       string          `json:"error,omitempty"`
}

// StoredEmail is the persisted view of one ingested email.
type StoredEmail struct {
	MessageID      string             `json:"messageId"`
	FromAddress    string             `json:"fromAddress"`
	FromName       string             `json:"fromName,omitempty"`
	FromOriginal   string             `json:"fromOriginal,omitempty"`
	Recipients     string             `json:"recipients,omitempty"`
	Cc             string             `json:"cc,omitempty"`
	Bcc            string             `json:"bcc,omitempty"`
	Subject        string             `json:"subject"`
	BodyNormalized string             `json:"bodyNormalized"`
	Headers        map[string]string  `json:"headers,omitempty"`
	Date           time.Time          `json:"date"`
	Size           int64              `json:"size"`
	Recovered      bool               `json:"recovered"`
	Attachments    []StoredAttachment `json:"attachments,omitempty"`
}

// SaveResult upserts the email record and replaces its attachment metadata
// in one transaction. Re-ingesting a message id overwrites the previous row.
func (s *Store) SaveResult(ctx context.Context, email *parser.ParsedEmail, atts []attachment.Processed, recovered bool) error {
	headersJSON, err := json.Marshal(email.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO emails (message_id, from_address, from_name, from_original,
			recipients, cc, bcc, subject, body_normalized, headers, date, size, recovered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			from_address = excluded.from_address,
			from_name = excluded.from_name,
			from_original = excluded.from_original,
			recipients = excluded.recipients,
			cc = excluded.cc,
			bcc = excluded.bcc,
			subject = excluded.subject,
			body_normalized = excluded.body_normalized,
			headers = excluded.headers,
			date = excluded.date,
			size = excluded.size,
			recovered = excluded.recovered
	`, email.MessageID, email.From.Address, email.From.Name, email.From.Original,
		joinAddresses(email.To), joinAddresses(email.Cc), joinAddresses(email.Bcc),
		email.Subject, email.Body.Normalized, string(headersJSON),
		email.Date.UTC().Format(time.RFC3339), email.Size, recovered)
	if err != nil {
		return fmt.Errorf("failed to upsert email: %w", err)
	}

	// last_insert_rowid is unreliable after the conflict-update branch, so
	// the row id is always resolved by key.
	var emailID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM emails WHERE message_id = ?`, email.MessageID,
	).Scan(&emailID); err != nil {
		return fmt.Errorf("failed to resolve email id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM attachments WHERE email_id = ?`, emailID); err != nil {
		return fmt.Errorf("failed to clear attachments: %w", err)
	}

	for _, att := range atts {
		metaJSON, err := json.Marshal(att.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode attachment metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (email_id, filename, content_type, size,
				category, processed, metadata, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, emailID, att.Filename, att.ContentType, att.Size,
			string(att.Category), att.Processed, string(metaJSON), att.Error); err != nil {
			return fmt.Errorf("failed to insert attachment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// EmailExists reports whether a message id has already been ingested.
func (s *Store) EmailExists(ctx context.Context, messageID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM emails WHERE message_id = ?`, messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return n > 0, nil
}

// GetEmail returns the stored record for a message id, or nil when unknown.
func (s *Store) GetEmail(ctx context.Context, messageID string) (*StoredEmail, error) {
	var (
		e           StoredEmail
		emailID     int64
		headersJSON string
		dateStr     string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, message_id, from_address, from_name, from_original,
			recipients, cc, bcc, subject, body_normalized, headers, date, size, recovered
		FROM emails WHERE message_id = ?
	`, messageID).Scan(&emailID, &e.MessageID, &e.FromAddress, &e.FromName,
		&e.FromOriginal, &e.Recipients, &e.Cc, &e.Bcc, &e.Subject,
		&e.BodyNormalized, &headersJSON, &dateStr, &e.Size, &e.Recovered)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}

	if headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &e.Headers); err != nil {
			return nil, fmt.Errorf("failed to decode headers: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
		e.Date = t
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, content_type, size, category, processed, metadata, error
		FROM attachments WHERE email_id = ? ORDER BY id
	`, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			att      StoredAttachment
			metaJSON string
		)
		if err := rows.Scan(&att.Filename, &att.ContentType, &att.Size,
			&att.Category, &att.Processed, &metaJSON, &att.Error); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		att.Metadata = json.RawMessage(metaJSON)
		e.Attachments = append(e.Attachments, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attachments: %w", err)
	}

	return &e, nil
}

// ListEmails returns the most recently ingested records, newest first.
func (s *Store) ListEmails(ctx context.Context, limit int) ([]StoredEmail, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, from_address, from_name, subject, date, size, recovered
		FROM emails ORDER BY ingested_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	var emails []StoredEmail
	for rows.Next() {
		var (
			e       StoredEmail
			dateStr string
		)
		if err := rows.Scan(&e.MessageID, &e.FromAddress, &e.FromName,
			&e.Subject, &dateStr, &e.Size, &e.Recovered); err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
			e.Date = t
		}
		emails = append(emails, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read emails: %w", err)
	}

	return emails, nil
}

func joinAddresses(addrs []parser.EmailAddress) string {
	out := ""
	for i, a := range addrs {
		if i > 0 {
			out += ", "
		}
		out += a.Address
	}
	return out
}
