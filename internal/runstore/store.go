package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id has no stored record.
var ErrNotFound = errors.New("run not found")

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    submitted INTEGER NOT NULL,
    succeeded INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    image_input TEXT,
    mask_input TEXT,
    output_dir TEXT,
    params_json TEXT,
    completed_with_errors INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS outcomes (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    case_id TEXT NOT NULL,
    status TEXT NOT NULL,
    kind TEXT,
    message TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, case_id)
);
CREATE INDEX IF NOT EXISTS idx_outcomes_run_status ON outcomes(run_id, status);
`

// Open initializes or connects to the run history database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure run history directory: %w", err)
	}

	dbPath := filepath.Join(dir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// SaveRun stores one completed run with its per-case outcomes in a single
// transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, outcomes []CaseOutcome) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, mode, started_at, finished_at, submitted, succeeded, skipped, failed,
    image_input, mask_input, output_dir, params_json, completed_with_errors)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.Mode,
			formatTime(run.StartedAt),
			formatTime(run.FinishedAt),
			run.Submitted,
			run.Succeeded,
			run.Skipped,
			run.Failed,
			nullableString(run.ImageInput),
			nullableString(run.MaskInput),
			nullableString(run.OutputDir),
			nullableString(run.ParamsJSON),
			boolToInt(run.CompletedWithErrors),
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, out := range outcomes {
			_, err = tx.ExecContext(ctx, `
INSERT INTO outcomes (run_id, case_id, status, kind, message, duration_ms)
VALUES (?, ?, ?, ?, ?, ?)`,
				run.ID,
				out.CaseID,
				out.Status,
				nullableString(out.Kind),
				nullableString(out.Message),
				out.DurationMS,
			)
			if err != nil {
				return fmt.Errorf("insert outcome for %s: %w", out.CaseID, err)
			}
		}

		return tx.Commit()
	})
}

const runColumns = "id, mode, started_at, finished_at, submitted, succeeded, skipped, failed, image_input, mask_input, output_dir, params_json, completed_with_errors"

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns everything.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunOutcomes returns the per-case outcomes of one run in case id order.
func (s *Store) RunOutcomes(ctx context.Context, runID string) ([]CaseOutcome, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, case_id, status, kind, message, duration_ms
FROM outcomes WHERE run_id = ? ORDER BY case_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load outcomes for %s: %w", runID, err)
	}
	defer rows.Close()

	var outcomes []CaseOutcome
	for rows.Next() {
		var (
			out     CaseOutcome
			kind    sql.NullString
			message sql.NullString
		)
		if err := rows.Scan(&out.RunID, &out.CaseID, &out.Status, &kind, &message, &out.DurationMS); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out.Kind = kind.String
		out.Message = message.String
		outcomes = append(outcomes, out)
	}
	return outcomes, rows.Err()
}

// FailedCaseIDs returns the case ids that failed in one run, for retrying
// just the failed subset.
func (s *Store) FailedCaseIDs(ctx context.Context, runID string) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
SELECT case_id FROM outcomes WHERE run_id = ? AND status = 'failed' ORDER BY case_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load failed cases for %s: %w", runID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan case id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw string
		imageInput  sql.NullString
		maskInput   sql.NullString
		outputDir   sql.NullString
		paramsJSON  sql.NullString
		withErrors  sql.NullInt64
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Mode,
		&startedRaw,
		&finishedRaw,
		&run.Submitted,
		&run.Succeeded,
		&run.Skipped,
		&run.Failed,
		&imageInput,
		&maskInput,
		&outputDir,
		&paramsJSON,
		&withErrors,
	); err != nil {
		return nil, err
	}

	run.ImageInput = imageInput.String
	run.MaskInput = maskInput.String
	run.OutputDir = outputDir.String
	run.ParamsJSON = paramsJSON.String
	if withErrors.Valid {
		run.CompletedWithErrors = withErrors.Int64 != 0
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finished, err := parseTimeString(finishedRaw); err == nil {
		run.FinishedAt = finished
	}
	return &run, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
