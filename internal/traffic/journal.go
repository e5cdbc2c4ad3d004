package traffic

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// journalTimeFormat sorts lexically in the recorded_at column.
const journalTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Journal stores frames in the modem_traffic table.
type Journal struct {
	db *sql.DB
}

// NewJournal creates a journal over a migrated database.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// JournalEntry is one stored frame.
type JournalEntry struct {
	ID         int64
	RecordedAt time.Time
	Direction  string
	Sender     string
	Code       byte
	Frame      []byte
	Decoded    string
}

// Record implements Sink.
func (j *Journal) Record(ctx context.Context, f Frame) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO modem_traffic (recorded_at, direction, sender, code, frame, decoded)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.Timestamp.UTC().Format(journalTimeFormat),
		f.Direction.Abbrev(),
		f.Sender,
		int64(f.Code()),
		f.Bytes,
		f.Summary(),
	)
	if err != nil {
		return fmt.Errorf("journaling frame: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, recorded_at, direction, sender, code, frame, decoded
		FROM modem_traffic ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			e       JournalEntry
			at      string
			code    sql.NullInt64
			decoded sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.Direction, &e.Sender, &code, &e.Frame, &decoded); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.RecordedAt, err = time.Parse(journalTimeFormat, at)
		if err != nil {
			return nil, fmt.Errorf("parsing journal time %q: %w", at, err)
		}
		e.Code = byte(code.Int64) //nolint:gosec // stored from a byte
		e.Decoded = decoded.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}

// Prune deletes entries recorded before cutoff and returns how many.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		"DELETE FROM modem_traffic WHERE recorded_at < ?", cutoff.UTC().Format(journalTimeFormat))
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	return res.RowsAffected()
}
