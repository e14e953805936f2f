package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/solatis/mailrules/internal/types"
)

// Store is the SQL-backed record store and run log.
// It satisfies rules.RecordStore.
type Store struct {
	db  *sqlx.DB
	q   *Queries
	log zerolog.Logger
	now func() time.Time
}

// recordRow is the records table shape.
type recordRow struct {
	Seq        int64          `db:"seq"`
	ID         string         `db:"id"`
	Subject    string         `db:"subject"`
	Sender     string         `db:"sender"`
	ReceivedAt sql.NullString `db:"received_at"`
	Body       string         `db:"body"`
}

// NewStore wraps an open database. Migrations must already be applied.
func NewStore(db *sqlx.DB, log zerolog.Logger) (*Store, error) {
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, q: q, log: log, now: time.Now}, nil
}

// SaveRecords upserts records in one transaction. New records are appended
// to store order; a record whose id already exists keeps its position and
// has its fields replaced. Returns the number of records written.
func (s *Store) SaveRecords(ctx context.Context, records []types.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fetchedAt := formatTime(s.now())
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			return 0, fmt.Errorf("record %d has an empty id", i)
		}

		var receivedAt sql.NullString
		if rec.HasReceivedAt() {
			receivedAt = sql.NullString{String: formatTime(*rec.ReceivedAt), Valid: true}
		}

		_, err := s.q.Exec(ctx, tx, "upsert-record",
			rec.ID, rec.Subject, rec.Sender, receivedAt, rec.Body, fetchedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to save record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit records: %w", err)
	}

	s.log.Debug().Int("records", len(records)).Msg("records saved")
	return len(records), nil
}

// FetchAll returns every stored record in store order.
func (s *Store) FetchAll(ctx context.Context) ([]types.Record, error) {
	var rows []recordRow
	if err := s.q.Select(ctx, s.db, "list-records", &rows); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]types.Record, 0, len(rows))
	for _, row := range rows {
		rec := types.Record{
			ID:      row.ID,
			Subject: row.Subject,
			Sender:  row.Sender,
			Body:    row.Body,
		}
		if row.ReceivedAt.Valid {
			ts, err := parseTime(row.ReceivedAt.String)
			if err != nil {
				// Kept without a receive time; date conditions evaluate false
				s.log.Warn().Err(err).Str("record_id", row.ID).Msg("unreadable received_at")
			} else {
				rec.ReceivedAt = &ts
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// CountRecords returns the number of stored records.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.q.Get(ctx, s.db, "count-records", &n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// DeleteRecords removes every stored record.
func (s *Store) DeleteRecords(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, s.db, "delete-all-records"); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// formatTime renders timestamps as RFC3339 UTC text. PostgreSQL parses the
// same text into TIMESTAMP WITH TIME ZONE columns.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
