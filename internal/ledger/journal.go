package ledger

import (
	"database/sql"
	"fmt"
	"time"
)

// Journal is the append-only ledger log backed by SQLite. One entry is
// appended per state transition; entries are never updated or deleted.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (and if necessary creates) the journal database.
// The caller is responsible for importing the sqlite3 driver.
func OpenJournal(driver, dsn string) (*Journal, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	entity TEXT NOT NULL,
	detail TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Append records one ledger entry.
func (j *Journal) Append(kind, entity, detail string) error {
	_, err := j.db.Exec(
		"INSERT INTO ledger_entries (kind, entity, detail, created_at) VALUES (?, ?, ?, ?)",
		kind, entity, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// Count returns the total number of journal entries.
func (j *Journal) Count() (int64, error) {
	var n int64
	if err := j.db.QueryRow("SELECT COUNT(*) FROM ledger_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return n, nil
}

// CountKind returns the number of journal entries of the given kind.
func (j *Journal) CountKind(kind string) (int64, error) {
	var n int64
	if err := j.db.QueryRow("SELECT COUNT(*) FROM ledger_entries WHERE kind = ?", kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
