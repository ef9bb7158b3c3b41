package reorg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"reshard/internal/logging"
	"reshard/internal/shard"
)

// ErrRootInvalid is returned when the root does not exist, is not a
// directory, or cannot be made absolute. Nothing is touched in that case.
var ErrRootInvalid = errors.New("not a valid directory")

// ErrTargetExists is the per-file error for a destination that is already occupied.
var ErrTargetExists = errors.New("target already exists")

const dirPerm fs.FileMode = 0o755

// Recorder persists run history. Recorder errors are logged and never fail a run.
type Recorder interface {
	BeginRun(ctx context.Context, report Report) error
	RecordOutcome(ctx context.Context, runID string, outcome Outcome) error
	FinishRun(ctx context.Context, report Report) error
}

// Options configures a run.
type Options struct {
	Spec   shard.Spec
	Prune  PruneMode
	DryRun bool
	// RunID overrides the generated run identifier.
	RunID    string
	Logger   *slog.Logger
	FS       FileSystem
	Recorder Recorder
	// OnOutcome is called once per file, in processing order.
	OnOutcome func(Outcome)
}

// Decide classifies an entry without touching the filesystem. It returns the
// expected directory segments and StateUnclassifiable, StateInPlace or
// StateMoved (meaning a move is required).
func Decide(entry Entry, spec shard.Spec) ([]string, State) {
	expected, ok := spec.Segments(entry.Name)
	if !ok {
		return nil, StateUnclassifiable
	}
	if shard.SameDir(entry.CurrentDir, expected) {
		return expected, StateInPlace
	}
	return expected, StateMoved
}

// ResolveRoot makes root absolute and verifies it is an existing directory.
// A root that is itself a symlink is replaced by its target so the walk
// descends into it; symlinks below the root are left alone.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%q is %w", root, ErrRootInvalid)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%s is %w: %v", root, ErrRootInvalid, err)
	}
	if info, err := os.Lstat(abs); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return "", fmt.Errorf("%s is %w: %v", abs, ErrRootInvalid, err)
		}
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%s is %w: %v", abs, ErrRootInvalid, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is %w", abs, ErrRootInvalid)
	}
	return abs, nil
}

// Run reorganizes root to opts.Spec. It returns an error only when the root
// is invalid, the shard depth is invalid, or ctx is cancelled between files; the
// report always reflects the files processed so far.
func Run(ctx context.Context, root string, opts Options) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := opts.Spec.Validate(); err != nil {
		return Report{}, err
	}
	abs, err := ResolveRoot(root)
	if err != nil {
		return Report{}, err
	}

	r := newRunner(abs, opts)
	ctx = logging.WithRun(ctx, r.report.RunID, abs, opts.Spec.Depth)
	r.logger = logging.WithContext(ctx, r.logger)
	return r.run(ctx)
}

type runner struct {
	root     string
	opts     Options
	fs       FileSystem
	logger   *slog.Logger
	recorder Recorder
	// recordCtx outlives cancellation so files already moved stay journaled.
	recordCtx context.Context
	report    Report
	sampler   *logging.ProgressSampler
	// claimed holds dry-run targets already planned in this run.
	claimed map[string]struct{}
}

func newRunner(root string, opts Options) *runner {
	fsys := opts.FS
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	prune := opts.Prune
	if prune == "" {
		prune = PruneNested
	}
	opts.Prune = prune
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &runner{
		root:     root,
		opts:     opts,
		fs:       fsys,
		logger:   logging.NewComponentLogger(opts.Logger, "reorg"),
		recorder: opts.Recorder,
		sampler:  logging.NewProgressSampler(10),
		claimed:  make(map[string]struct{}),
		report: Report{
			RunID:  runID,
			Root:   root,
			Depth:  opts.Spec.Depth,
			DryRun: opts.DryRun,
		},
	}
}

func (r *runner) run(ctx context.Context) (Report, error) {
	r.report.Started = time.Now().UTC()
	r.recordCtx = context.WithoutCancel(ctx)
	r.logger.Info("traversing root",
		logging.String("spec", r.opts.Spec.String()),
		logging.String("prune", string(r.opts.Prune)),
		logging.Bool("dry_run", r.opts.DryRun),
	)
	r.record(func() error { return r.recorder.BeginRun(r.recordCtx, r.report) })

	entries, walkFailures := r.snapshot()
	r.report.Scanned = len(entries)
	for _, failure := range walkFailures {
		r.emit(failure)
	}

	var runErr error
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			runErr = err
			r.logger.Warn("run interrupted",
				logging.Int("processed", i),
				logging.Int("remaining", len(entries)-i),
				logging.Error(err),
			)
			break
		}
		r.emit(r.process(entry))
		if r.sampler.ShouldLog(i+1, len(entries)) {
			r.logger.Info("progress",
				logging.Int("processed", i+1),
				logging.Int("total", len(entries)),
				logging.String("percent", fmt.Sprintf("%.0f%%", logging.Percent(i+1, len(entries)))),
			)
		}
	}

	r.report.Finished = time.Now().UTC()
	r.logger.Info("root finished",
		logging.Int("scanned", r.report.Scanned),
		logging.Int("moved", r.report.Moved),
		logging.Int("planned", r.report.Planned),
		logging.Int("in_place", r.report.InPlace),
		logging.Int("unclassifiable", r.report.Unclassifiable),
		logging.Int("failed", r.report.Failed),
		logging.Int("dirs_pruned", r.report.DirsPruned),
		logging.Duration("elapsed", r.report.Duration()),
	)
	r.record(func() error { return r.recorder.FinishRun(r.recordCtx, r.report) })
	return r.report, runErr
}

func (r *runner) emit(outcome Outcome) {
	r.report.add(outcome)
	if r.opts.OnOutcome != nil {
		r.opts.OnOutcome(outcome)
	}
	r.record(func() error { return r.recorder.RecordOutcome(r.recordCtx, r.report.RunID, outcome) })
}

// record invokes fn when a recorder is configured. The first failure detaches
// the recorder so a broken journal produces one warning instead of one per file.
func (r *runner) record(fn func() error) {
	if r.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		logging.WarnWithContext(r.logger, "run journal unavailable", "journal_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal.path permissions or disable the journal"),
			logging.String(logging.FieldImpact, "run history incomplete; files are unaffected"),
		)
		r.recorder = nil
	}
}

// snapshot lists every regular file below the root before anything moves, so
// directories created during the run are never walked. Unreadable
// directories become walk failures.
func (r *runner) snapshot() ([]Entry, []Outcome) {
	var (
		entries  []Entry
		failures []Outcome
	)
	_ = filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == r.root {
				// Root became unreadable after ResolveRoot; report and stop.
				failures = append(failures, r.walkFailure(path, err))
				return fs.SkipAll
			}
			failures = append(failures, r.walkFailure(path, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(r.root, filepath.Dir(path))
		if relErr != nil {
			failures = append(failures, r.walkFailure(path, relErr))
			return nil
		}
		entries = append(entries, Entry{
			Path:       path,
			Name:       d.Name(),
			CurrentDir: shard.SplitRelDir(rel),
		})
		return nil
	})
	return entries, failures
}

func (r *runner) walkFailure(path string, err error) Outcome {
	logging.WarnWithContext(r.logger, "cannot read path", "walk_failed",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check directory permissions"),
		logging.String(logging.FieldImpact, "files below this path were not examined"),
	)
	return Outcome{
		Entry: Entry{Path: path, Name: filepath.Base(path)},
		State: StateFailed,
		Step:  StepWalk,
		Err:   err,
	}
}

func (r *runner) process(entry Entry) Outcome {
	logger := r.logger.With(logging.String("file", entry.Name))
	logger.Debug("processing file", logging.String("path", entry.Path))

	expected, state := Decide(entry, r.opts.Spec)
	outcome := Outcome{Entry: entry, State: state, ExpectedDir: expected}
	switch state {
	case StateUnclassifiable:
		logger.Info("file not classifiable; name too short for depth",
			logging.Int("name_length", utf8.RuneCountInString(entry.Name)),
			logging.Int("min_length", r.opts.Spec.MinNameLen()),
		)
		return outcome
	case StateInPlace:
		logger.Debug("file already in the right directory")
		return outcome
	}

	targetDir := filepath.Join(r.root, shard.RelDir(expected))
	outcome.Target = filepath.Join(targetDir, entry.Name)

	if r.opts.DryRun {
		return r.plan(logger, outcome, targetDir)
	}

	if err := r.ensureDir(logger, targetDir); err != nil {
		outcome.State = StateFailed
		outcome.Step = StepMkdir
		outcome.Err = err
		return outcome
	}

	if err := r.move(logger, entry.Path, outcome.Target); err != nil {
		outcome.State = StateFailed
		outcome.Step = StepMove
		outcome.Err = err
		return outcome
	}

	outcome.State = StateMoved
	r.prune(logger, &outcome)
	return outcome
}

func (r *runner) plan(logger *slog.Logger, outcome Outcome, targetDir string) Outcome {
	if _, err := r.fs.Lstat(outcome.Target); err == nil {
		outcome.State = StateFailed
		outcome.Step = StepMove
		outcome.Err = fmt.Errorf("%s: %w", outcome.Target, ErrTargetExists)
		logger.Warn("would not move; target occupied", logging.String("target", outcome.Target))
		return outcome
	}
	if _, taken := r.claimed[outcome.Target]; taken {
		outcome.State = StateFailed
		outcome.Step = StepMove
		outcome.Err = fmt.Errorf("%s: %w", outcome.Target, ErrTargetExists)
		logger.Warn("would not move; target already planned for another file", logging.String("target", outcome.Target))
		return outcome
	}
	if info, err := r.fs.Lstat(targetDir); err == nil && !info.IsDir() {
		outcome.State = StateFailed
		outcome.Step = StepMkdir
		outcome.Err = fmt.Errorf("%s exists and is not a directory", targetDir)
		logger.Warn("would not move; target directory blocked", logging.String("target_dir", targetDir))
		return outcome
	}
	r.claimed[outcome.Target] = struct{}{}
	outcome.State = StatePlanned
	logger.Info("would move file", logging.String("target", outcome.Target))
	return outcome
}

func (r *runner) ensureDir(logger *slog.Logger, dir string) error {
	info, err := r.fs.Lstat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		err = fmt.Errorf("%s exists and is not a directory", dir)
	case errors.Is(err, fs.ErrNotExist):
		missing := r.missingLevels(dir)
		logger.Info("creating directory", logging.String("dir", dir), logging.Int("levels", missing))
		if err = r.fs.MkdirAll(dir, dirPerm); err == nil {
			r.report.DirsCreated += missing
			return nil
		}
		err = fmt.Errorf("create %s: %w", dir, err)
	default:
		err = fmt.Errorf("stat %s: %w", dir, err)
	}
	logging.WarnWithContext(logger, "cannot create target directory", "mkdir_failed",
		logging.String("dir", dir),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check permissions and free space below the root"),
	)
	return err
}

// missingLevels counts how many directories from dir up to the root do not
// exist yet, which is how many MkdirAll creates.
func (r *runner) missingLevels(dir string) int {
	missing := 0
	for dir != r.root && dir != filepath.Dir(dir) {
		if _, err := r.fs.Lstat(dir); err == nil {
			break
		}
		missing++
		dir = filepath.Dir(dir)
	}
	return missing
}

func (r *runner) move(logger *slog.Logger, src, dst string) error {
	if _, err := r.fs.Lstat(dst); err == nil {
		err = fmt.Errorf("%s: %w", dst, ErrTargetExists)
		logging.WarnWithContext(logger, "cannot move file; target occupied", "move_failed",
			logging.String("target", dst),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "resolve the duplicate by hand, then rerun"),
		)
		return err
	}
	if err := r.fs.Rename(src, dst); err != nil {
		err = fmt.Errorf("move %s: %w", src, err)
		logging.WarnWithContext(logger, "cannot move file", "move_failed",
			logging.String("target", dst),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions below the root"),
		)
		return err
	}
	logger.Info("moved file", logging.String("target", dst))
	return nil
}
