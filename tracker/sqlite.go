package tracker

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend persists the entry collection in a SQLite database, for
// deployments that keep state on a volume instead of committing a JSON file.
// It still honors the read-all/write-all contract: Save replaces the whole
// collection in one transaction.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database and initializes the schema.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sent_articles (
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		sent_at TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Close closes the underlying database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Load reads all tracked entries in insertion order.
func (b *SQLiteBackend) Load() ([]Entry, error) {
	rows, err := b.db.Query(`SELECT url, title, fingerprint, sent_at FROM sent_articles ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query sent_articles: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var sentAt string
		if err := rows.Scan(&e.URL, &e.Title, &e.Fingerprint, &sentAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		t, err := time.Parse(time.RFC3339, sentAt)
		if err != nil {
			return nil, fmt.Errorf("parse sent_at %q: %w", sentAt, err)
		}
		e.SentAt = t
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Save replaces the stored collection with the given entries atomically.
func (b *SQLiteBackend) Save(entries []Entry) error {
	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sent_articles`); err != nil {
		return fmt.Errorf("clear sent_articles: %w", err)
	}
	for _, e := range entries {
		_, err := tx.Exec(
			`INSERT INTO sent_articles (url, title, fingerprint, sent_at) VALUES (?, ?, ?, ?)`,
			e.URL, e.Title, e.Fingerprint, e.SentAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
	}
	return tx.Commit()
}
