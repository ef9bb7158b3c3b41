package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reshard/internal/reorg"
)

// ErrRunNotFound is returned when a run ID has no journal row.
var ErrRunNotFound = errors.New("run not found")

// Run is one journaled reorganization run.
type Run struct {
	ID             string
	Root           string
	Depth          int
	DryRun         bool
	StartedAt      time.Time
	FinishedAt     time.Time
	Scanned        int
	Moved          int
	Planned        int
	InPlace        int
	Unclassifiable int
	Failed         int
	DirsCreated    int
	DirsPruned     int
	PruneFailed    int
}

// Finished reports whether the run recorded its final counters.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Entry is one journaled file outcome.
type Entry struct {
	ID         int64
	RunID      string
	Path       string
	Target     string
	State      reorg.State
	Step       reorg.Step
	Error      string
	Prune      reorg.PruneState
	RecordedAt time.Time
}

var _ reorg.Recorder = (*Store)(nil)

// BeginRun inserts the run row.
func (s *Store) BeginRun(ctx context.Context, report reorg.Report) error {
	started := report.Started
	if started.IsZero() {
		started = time.Now().UTC()
	}
	err := s.exec(ctx,
		`INSERT INTO runs (id, root, depth, dry_run, started_at) VALUES (?, ?, ?, ?, ?)`,
		report.RunID, report.Root, report.Depth, boolToInt(report.DryRun), formatTime(started),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}
	return nil
}

// RecordOutcome stores moved, planned and failed outcomes. Other states are
// reflected only in the run counters.
func (s *Store) RecordOutcome(ctx context.Context, runID string, outcome reorg.Outcome) error {
	if !journaled(outcome) {
		return nil
	}
	var errMsg sql.NullString
	if outcome.Err != nil {
		errMsg = sql.NullString{String: outcome.Err.Error(), Valid: true}
	} else if outcome.PruneErr != nil {
		errMsg = sql.NullString{String: outcome.PruneErr.Error(), Valid: true}
	}
	err := s.exec(ctx,
		`INSERT INTO outcomes (run_id, path, target, state, step, error_message, prune, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		outcome.Path,
		nullString(outcome.Target),
		string(outcome.State),
		nullString(string(outcome.Step)),
		errMsg,
		nullString(string(outcome.Prune)),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("insert outcome for %s: %w", outcome.Path, err)
	}
	return nil
}

func journaled(outcome reorg.Outcome) bool {
	switch outcome.State {
	case reorg.StateMoved, reorg.StatePlanned, reorg.StateFailed:
		return true
	}
	return false
}

// FinishRun stores the final counters.
func (s *Store) FinishRun(ctx context.Context, report reorg.Report) error {
	finished := report.Finished
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	err := s.exec(ctx,
		`UPDATE runs SET finished_at = ?, scanned = ?, moved = ?, planned = ?, in_place = ?,
            unclassifiable = ?, failed = ?, dirs_created = ?, dirs_pruned = ?, prune_failed = ?
         WHERE id = ?`,
		formatTime(finished),
		report.Scanned,
		report.Moved,
		report.Planned,
		report.InPlace,
		report.Unclassifiable,
		report.Failed,
		report.DirsCreated,
		report.DirsPruned,
		report.PruneFailed,
		report.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", report.RunID, err)
	}
	return nil
}

const runColumns = "id, root, depth, dry_run, started_at, finished_at, scanned, moved, planned, in_place, unclassifiable, failed, dirs_created, dirs_pruned, prune_failed"

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a run by ID or by unique ID prefix.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE id = ? OR id LIKE ? ORDER BY (id = ?) DESC LIMIT 2",
		id, id+"%", id)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch {
	case len(matches) == 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case matches[0].ID == id || len(matches) == 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("run prefix %q is ambiguous", id)
	}
}

// Outcomes returns the journaled outcomes of a run in processing order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, path, target, state, step, error_message, prune, recorded_at
         FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry    Entry
			target   sql.NullString
			state    string
			step     sql.NullString
			errMsg   sql.NullString
			prune    sql.NullString
			recorded string
		)
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Path, &target, &state, &step, &errMsg, &prune, &recorded); err != nil {
			return nil, err
		}
		entry.Target = target.String
		entry.State = reorg.State(state)
		entry.Step = reorg.Step(step.String)
		entry.Error = errMsg.String
		entry.Prune = reorg.PruneState(prune.String)
		entry.RecordedAt = parseTime(recorded)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run      Run
		dryRun   int
		started  string
		finished sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Root,
		&run.Depth,
		&dryRun,
		&started,
		&finished,
		&run.Scanned,
		&run.Moved,
		&run.Planned,
		&run.InPlace,
		&run.Unclassifiable,
		&run.Failed,
		&run.DirsCreated,
		&run.DirsPruned,
		&run.PruneFailed,
	); err != nil {
		return Run{}, err
	}
	run.DryRun = dryRun != 0
	run.StartedAt = parseTime(started)
	if finished.Valid {
		run.FinishedAt = parseTime(finished.String)
	}
	return run, nil
}

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
