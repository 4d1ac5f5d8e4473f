package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Import statuses.
const (
	StatusImported = "imported"
	StatusFailed   = "failed"
)

// Import is one shift the user tried to add to a calendar.
type Import struct {
	ID         int
	BatchID    string
	CalendarID string
	EventID    string
	Date       string
	StartTime  string
	EndTime    string
	Location   string
	Status     string
	Error      string
	CreatedAt  time.Time
}

// NewBatchID returns an identifier grouping the imports of one write.
func NewBatchID() string {
	return uuid.NewString()
}

// RecordImports stores a batch in one transaction.
func (db *DB) RecordImports(imports []Import) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO imports (batch_id, calendar_id, event_id, shift_date, start_time, end_time, location, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, im := range imports {
		if _, err := stmt.Exec(
			im.BatchID, im.CalendarID, nullable(im.EventID),
			im.Date, im.StartTime, im.EndTime, im.Location,
			im.Status, nullable(im.Error), now,
		); err != nil {
			return fmt.Errorf("inserting import: %w", err)
		}
	}

	return tx.Commit()
}

// RecentImports returns up to limit imports, newest first.
func (db *DB) RecentImports(limit int) ([]Import, error) {
	if limit <= 0 {
		limit = 20
	}
	return db.queryImports(
		`SELECT id, batch_id, calendar_id, event_id, shift_date, start_time, end_time, location, status, error, created_at
		 FROM imports
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
}

// BatchImports returns the imports of the batch whose id starts with prefix,
// in insertion order. History output shows ids shortened to eight characters.
func (db *DB) BatchImports(prefix string) ([]Import, error) {
	if prefix == "" {
		return nil, fmt.Errorf("batch id is empty")
	}
	return db.queryImports(
		`SELECT id, batch_id, calendar_id, event_id, shift_date, start_time, end_time, location, status, error, created_at
		 FROM imports
		 WHERE batch_id LIKE ? || '%'
		 ORDER BY id ASC`,
		prefix,
	)
}

func (db *DB) queryImports(query string, args ...any) ([]Import, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying imports: %w", err)
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		var im Import
		var eventID, errText sql.NullString
		var createdStr string

		if err := rows.Scan(
			&im.ID, &im.BatchID, &im.CalendarID, &eventID,
			&im.Date, &im.StartTime, &im.EndTime, &im.Location,
			&im.Status, &errText, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scanning import: %w", err)
		}

		im.EventID = eventID.String
		im.Error = errText.String
		if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
			im.CreatedAt = t
		}

		imports = append(imports, im)
	}

	return imports, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
