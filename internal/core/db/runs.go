package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/solatis/mailrules/internal/rules"
	"github.com/solatis/mailrules/internal/types"
)

// DefaultRunLimit bounds ListRuns when the caller passes a non-positive limit.
const DefaultRunLimit = 20

// RunFlags marks how a run ended.
type RunFlags struct {
	Interrupted bool // context cancelled before every pair was attempted
	DryRun      bool // mutations were logged, not sent
}

// RunSummary is one row of the run log.
type RunSummary struct {
	RunID         types.RunID
	StartedAt     time.Time
	FinishedAt    time.Time
	Rules         int
	Records       int
	Evaluated     int
	Matched       int
	ActionsOK     int
	ActionsFailed int
	PairFailures  int
	Interrupted   bool
	DryRun        bool
}

// OutcomeRow is one persisted action outcome.
type OutcomeRow struct {
	Position int            `db:"position"`
	RuleName string         `db:"rule_name"`
	RecordID string         `db:"record_id"`
	Action   string         `db:"action"`
	Error    sql.NullString `db:"error"`
}

type runRow struct {
	RunID         string `db:"run_id"`
	StartedAt     string `db:"started_at"`
	FinishedAt    string `db:"finished_at"`
	Rules         int    `db:"rules"`
	Records       int    `db:"records"`
	Evaluated     int    `db:"evaluated"`
	Matched       int    `db:"matched"`
	ActionsOK     int    `db:"actions_ok"`
	ActionsFailed int    `db:"actions_failed"`
	PairFailures  int    `db:"pair_failures"`
	Interrupted   bool   `db:"interrupted"`
	DryRun        bool   `db:"dry_run"`
}

// SaveRun persists a run report and its action outcomes in one transaction.
func (s *Store) SaveRun(ctx context.Context, report *rules.Report, flags RunFlags) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = s.q.Exec(ctx, tx, "insert-run",
		string(report.RunID),
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		report.Rules,
		report.Records,
		report.Evaluated,
		report.Matched,
		report.ActionsOK(),
		report.ActionsFailed(),
		len(report.PairFailures),
		flags.Interrupted,
		flags.DryRun,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", report.RunID, err)
	}

	for i, o := range report.Outcomes {
		var errText sql.NullString
		if o.Err != nil {
			errText = sql.NullString{String: o.Err.Error(), Valid: true}
		}
		_, err := s.q.Exec(ctx, tx, "insert-action-outcome",
			string(report.RunID), i, o.RuleName, o.RecordID, o.Action.String(), errText)
		if err != nil {
			return fmt.Errorf("failed to save action outcome %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", report.RunID, err)
	}

	s.log.Debug().
		Str("run_id", string(report.RunID)).
		Int("outcomes", len(report.Outcomes)).
		Msg("run saved")
	return nil
}

// ListRuns returns up to limit runs, newest first. Run ids are UUIDv7, so
// ordering by id is ordering by start time.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	var rows []runRow
	if err := s.q.Select(ctx, s.db, "list-runs", &rows, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]RunSummary, 0, len(rows))
	for _, row := range rows {
		started, err := parseTime(row.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s: invalid started_at: %w", row.RunID, err)
		}
		finished, err := parseTime(row.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s: invalid finished_at: %w", row.RunID, err)
		}
		runs = append(runs, RunSummary{
			RunID:         types.RunID(row.RunID),
			StartedAt:     started,
			FinishedAt:    finished,
			Rules:         row.Rules,
			Records:       row.Records,
			Evaluated:     row.Evaluated,
			Matched:       row.Matched,
			ActionsOK:     row.ActionsOK,
			ActionsFailed: row.ActionsFailed,
			PairFailures:  row.PairFailures,
			Interrupted:   row.Interrupted,
			DryRun:        row.DryRun,
		})
	}
	return runs, nil
}

// ListOutcomes returns the action outcomes of one run in attempt order.
func (s *Store) ListOutcomes(ctx context.Context, runID types.RunID) ([]OutcomeRow, error) {
	var rows []OutcomeRow
	if err := s.q.Select(ctx, s.db, "list-action-outcomes", &rows, string(runID)); err != nil {
		return nil, fmt.Errorf("failed to list outcomes for run %s: %w", runID, err)
	}
	return rows, nil
}
