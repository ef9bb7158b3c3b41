package reorg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"reshard/internal/logging"
	"reshard/internal/reorg"
	"reshard/internal/shard"
	"reshard/internal/testsupport"
)

func mustSpec(t *testing.T, depth int) shard.Spec {
	t.Helper()
	spec, err := shard.New(depth)
	if err != nil {
		t.Fatalf("shard.New(%d): %v", depth, err)
	}
	return spec
}

func run(t *testing.T, root string, opts reorg.Options) reorg.Report {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	report, err := reorg.Run(context.Background(), root, opts)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	return report
}

func assertFiles(t *testing.T, root string, want ...string) {
	t.Helper()
	got := testsupport.ListFiles(t, root)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected files:\n got %v\nwant %v", got, want)
	}
}

func TestRunMovesFlatFilesTwoDeep(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "deadbeef.bin", "0123456789abcdef")

	report := run(t, root, reorg.Options{Spec: mustSpec(t, 2)})

	assertFiles(t, root, "01/23/0123456789abcdef", "de/ad/deadbeef.bin")
	if report.Scanned != 2 || report.Moved != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.DirsCreated != 4 {
		t.Fatalf("expected 4 directories created, got %d", report.DirsCreated)
	}
	if report.RunID == "" || report.Root != root || report.Depth != 2 {
		t.Fatalf("unexpected report identity %+v", report)
	}
	if !report.Clean() {
		t.Fatal("expected clean report")
	}
}

func TestRunDeepensRomRootToDepot(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "de/ad/deadbeefcafe", "01/23/0123456789")

	report := run(t, root, reorg.Options{Spec: mustSpec(t, 4)})

	assertFiles(t, root, "01/23/45/67/0123456789", "de/ad/be/ef/deadbeefcafe")
	if report.Moved != 2 || report.DirsPruned != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunFlattensDepotToRomRootAndPrunes(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "de/ad/be/ef/deadbeef00")

	var outcomes []reorg.Outcome
	report := run(t, root, reorg.Options{
		Spec:      mustSpec(t, 2),
		OnOutcome: func(o reorg.Outcome) { outcomes = append(outcomes, o) },
	})

	assertFiles(t, root, "de/ad/deadbeef00")
	if dirs := testsupport.ListDirs(t, root); !reflect.DeepEqual(dirs, []string{"de", "de/ad"}) {
		t.Fatalf("expected emptied shard directories pruned, got %v", dirs)
	}
	if report.DirsPruned != 2 {
		t.Fatalf("expected 2 pruned directories, got %d", report.DirsPruned)
	}
	if len(outcomes) != 1 || outcomes[0].Prune != reorg.PruneRemoved {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	want := []string{filepath.Join(root, "de", "ad", "be", "ef"), filepath.Join(root, "de", "ad", "be")}
	if !reflect.DeepEqual(outcomes[0].Pruned, want) {
		t.Fatalf("unexpected pruned order %v", outcomes[0].Pruned)
	}
}

func TestRunKeepsNonEmptySourceDirectory(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "de/ad/be/ef/deadbeef00", "de/ad/be/ef/x")

	var outcomes []reorg.Outcome
	report := run(t, root, reorg.Options{
		Spec:      mustSpec(t, 2),
		OnOutcome: func(o reorg.Outcome) { outcomes = append(outcomes, o) },
	})

	assertFiles(t, root, "de/ad/be/ef/x", "de/ad/deadbeef00")
	if report.DirsPruned != 0 || report.Unclassifiable != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if outcomes[0].Prune != reorg.PruneKept {
		t.Fatalf("expected source directory kept, got %q", outcomes[0].Prune)
	}
}

func TestRunPruneModes(t *testing.T) {
	tests := []struct {
		mode     reorg.PruneMode
		wantDirs []string
	}{
		{reorg.PruneNested, []string{"de", "de/ad", "incoming", "incoming/batch"}},
		{reorg.PruneAny, []string{"de", "de/ad"}},
		{reorg.PruneOff, []string{"de", "de/ad", "incoming", "incoming/batch"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			root := t.TempDir()
			testsupport.WriteTree(t, root, "incoming/batch/deadbeef")

			run(t, root, reorg.Options{Spec: mustSpec(t, 2), Prune: tt.mode})

			assertFiles(t, root, "de/ad/deadbeef")
			if dirs := testsupport.ListDirs(t, root); !reflect.DeepEqual(dirs, tt.wantDirs) {
				t.Fatalf("unexpected directories %v", dirs)
			}
		})
	}
}

func TestRunPruneOffKeepsNestedSource(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "de/ad/be/ef/deadbeef00")

	run(t, root, reorg.Options{Spec: mustSpec(t, 2), Prune: reorg.PruneOff})

	if dirs := testsupport.ListDirs(t, root); len(dirs) != 4 {
		t.Fatalf("expected directories untouched, got %v", dirs)
	}
}

func TestRunSkipsUnclassifiable(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "ab")
	fsys := newFaultFS()

	var outcomes []reorg.Outcome
	report := run(t, root, reorg.Options{
		Spec:      mustSpec(t, 2),
		FS:        fsys,
		OnOutcome: func(o reorg.Outcome) { outcomes = append(outcomes, o) },
	})

	assertFiles(t, root, "ab")
	if dirs := testsupport.ListDirs(t, root); len(dirs) != 0 {
		t.Fatalf("expected no directories created, got %v", dirs)
	}
	if report.Unclassifiable != 1 || fsys.Mutations() != 0 {
		t.Fatalf("unexpected report %+v mutations=%d", report, fsys.Mutations())
	}
	if outcomes[0].State != reorg.StateUnclassifiable || outcomes[0].ExpectedDir != nil {
		t.Fatalf("unexpected outcome %+v", outcomes[0])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root,
		"deadbeef", "incoming/cafebabe", "de/ad/be/ef/deadbeef01", "ab", "00/11/0011aa")

	first := run(t, root, reorg.Options{Spec: mustSpec(t, 2)})
	after := testsupport.ListFiles(t, root)
	afterDirs := testsupport.ListDirs(t, root)

	fsys := newFaultFS()
	second := run(t, root, reorg.Options{Spec: mustSpec(t, 2), FS: fsys})

	if first.Moved != 3 {
		t.Fatalf("expected 3 moves on first run, got %+v", first)
	}
	if second.Moved != 0 || fsys.Calls("rename") != 0 || fsys.Calls("mkdir") != 0 {
		t.Fatalf("expected no moves on second run, got %+v", second)
	}
	if second.InPlace != 4 || second.Unclassifiable != 1 {
		t.Fatalf("unexpected second report %+v", second)
	}
	assertFiles(t, root, after...)
	if dirs := testsupport.ListDirs(t, root); !reflect.DeepEqual(dirs, afterDirs) {
		t.Fatalf("directories changed on second run: %v vs %v", dirs, afterDirs)
	}
}

func TestRunLeavesCorrectlyPlacedFilesUntouched(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "de/ad/deadbeef", "CA/FE/cafebabe")
	path := filepath.Join(root, "de", "ad", "deadbeef")
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	fsys := newFaultFS()
	report := run(t, root, reorg.Options{Spec: mustSpec(t, 2), FS: fsys})

	if report.InPlace != 2 || fsys.Mutations() != 0 {
		t.Fatalf("expected case-insensitive in-place detection, got %+v mutations=%d", report, fsys.Mutations())
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !os.SameFile(before, after) || !before.ModTime().Equal(after.ModTime()) {
		t.Fatal("expected file untouched")
	}
}

func TestRunFailsOnInvalidRoot(t *testing.T) {
	fsys := newFaultFS()
	_, err := reorg.Run(context.Background(), "/does/not/exist", reorg.Options{Spec: mustSpec(t, 2), FS: fsys})
	if !errors.Is(err, reorg.ErrRootInvalid) {
		t.Fatalf("expected ErrRootInvalid, got %v", err)
	}

	file := filepath.Join(t.TempDir(), "deadbeef")
	testsupport.WriteFile(t, file, 1)
	if _, err := reorg.Run(context.Background(), file, reorg.Options{Spec: mustSpec(t, 2), FS: fsys}); !errors.Is(err, reorg.ErrRootInvalid) {
		t.Fatalf("expected ErrRootInvalid for file root, got %v", err)
	}
	if _, err := reorg.Run(context.Background(), "", reorg.Options{Spec: mustSpec(t, 2), FS: fsys}); !errors.Is(err, reorg.ErrRootInvalid) {
		t.Fatalf("expected ErrRootInvalid for empty root, got %v", err)
	}
	if fsys.Mutations() != 0 || fsys.Calls("readdir") != 0 {
		t.Fatal("expected no filesystem activity for invalid roots")
	}
}

func TestRunRejectsInvalidSpec(t *testing.T) {
	_, err := reorg.Run(context.Background(), t.TempDir(), reorg.Options{Spec: shard.Spec{Depth: 0}})
	if !errors.Is(err, shard.ErrInvalidDepth) {
		t.Fatalf("expected ErrInvalidDepth, got %v", err)
	}
}

func TestRunResolvesRelativeRoot(t *testing.T) {
	base := t.TempDir()
	testsupport.WriteTree(t, base, "depot/deadbeef")
	t.Chdir(base)

	report := run(t, "depot", reorg.Options{Spec: mustSpec(t, 2)})

	if report.Root != filepath.Join(base, "depot") {
		t.Fatalf("expected absolute root, got %q", report.Root)
	}
	assertFiles(t, filepath.Join(base, "depot"), "de/ad/deadbeef")
}

func TestRunCountsEveryCreatedLevel(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "deadbeef", "deadcafe")

	report := run(t, root, reorg.Options{Spec: mustSpec(t, 4)})

	assertFiles(t, root, "de/ad/be/ef/deadbeef", "de/ad/ca/fe/deadcafe")
	if report.DirsCreated != 6 {
		t.Fatalf("expected 6 directories created, got %d", report.DirsCreated)
	}
	if got := len(testsupport.ListDirs(t, root)); got != report.DirsCreated {
		t.Fatalf("expected %d directories on disk, got %d", report.DirsCreated, got)
	}
}

func TestRunFollowsSymlinkedRoot(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "real")
	testsupport.WriteTree(t, target, "deadbeef")
	link := filepath.Join(base, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	want, err := filepath.EvalSymlinks(target)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}

	report := run(t, link, reorg.Options{Spec: mustSpec(t, 2)})

	if report.Scanned != 1 || report.Moved != 1 || report.Root != want {
		t.Fatalf("unexpected report %+v", report)
	}
	assertFiles(t, target, "de/ad/deadbeef")
	if info, err := os.Lstat(link); err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("expected root link left in place: %v", err)
	}
}

func TestRunNeverOverwritesOccupiedTarget(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "de/ad/deadbeef")
	testsupport.WriteFile(t, filepath.Join(root, "deadbeef"), 7)

	var failed []reorg.Outcome
	report := run(t, root, reorg.Options{
		Spec: mustSpec(t, 2),
		OnOutcome: func(o reorg.Outcome) {
			if o.State == reorg.StateFailed {
				failed = append(failed, o)
			}
		},
	})

	assertFiles(t, root, "de/ad/deadbeef", "deadbeef")
	if report.Failed != 1 || len(failed) != 1 {
		t.Fatalf("expected one failure, got %+v", report)
	}
	if failed[0].Step != reorg.StepMove || !errors.Is(failed[0].Err, reorg.ErrTargetExists) {
		t.Fatalf("unexpected failure %+v", failed[0])
	}
	info, err := os.Stat(filepath.Join(root, "de", "ad", "deadbeef"))
	if err != nil || info.Size() != 1 {
		t.Fatalf("expected existing target preserved, got %v %v", info, err)
	}
}

func TestRunContinuesAfterMkdirFailure(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "cafebabe", "deadbeef")
	fsys := newFaultFS()
	fsys.failMkdir["fe"] = true

	var outcomes []reorg.Outcome
	report := run(t, root, reorg.Options{
		Spec:      mustSpec(t, 2),
		FS:        fsys,
		OnOutcome: func(o reorg.Outcome) { outcomes = append(outcomes, o) },
	})

	assertFiles(t, root, "cafebabe", "de/ad/deadbeef")
	if report.Failed != 1 || report.Moved != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if outcomes[0].Step != reorg.StepMkdir || !errors.Is(outcomes[0].Err, errInjected) {
		t.Fatalf("unexpected outcome %+v", outcomes[0])
	}
	if report.Clean() {
		t.Fatal("expected unclean report")
	}
}

func TestRunContinuesAfterMoveFailure(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "cafebabe", "deadbeef")
	fsys := newFaultFS()
	fsys.failRename["cafebabe"] = true

	var outcomes []reorg.Outcome
	report := run(t, root, reorg.Options{
		Spec:      mustSpec(t, 2),
		FS:        fsys,
		OnOutcome: func(o reorg.Outcome) { outcomes = append(outcomes, o) },
	})

	// The directory was created before the rename failed; the file stays put.
	assertFiles(t, root, "cafebabe", "de/ad/deadbeef")
	if report.Failed != 1 || report.Moved != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if outcomes[0].Step != reorg.StepMove || !errors.Is(outcomes[0].Err, errInjected) {
		t.Fatalf("unexpected outcome %+v", outcomes[0])
	}
}

func TestRunPruneFailureIsNotFatal(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "de/ad/be/ef/deadbeef00")
	fsys := newFaultFS()
	fsys.failRemove["ef"] = true

	var outcomes []reorg.Outcome
	report := run(t, root, reorg.Options{
		Spec:      mustSpec(t, 2),
		FS:        fsys,
		OnOutcome: func(o reorg.Outcome) { outcomes = append(outcomes, o) },
	})

	assertFiles(t, root, "de/ad/deadbeef00")
	if report.Moved != 1 || report.PruneFailed != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if outcomes[0].Prune != reorg.PruneFailed || !errors.Is(outcomes[0].PruneErr, errInjected) {
		t.Fatalf("unexpected outcome %+v", outcomes[0])
	}
}

func TestRunDryRunDoesNotMutate(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "deadbeef", "de/ad/deadbeef", "cafebabe", "ab")
	fsys := newFaultFS()

	var planned []string
	report := run(t, root, reorg.Options{
		Spec:   mustSpec(t, 2),
		DryRun: true,
		FS:     fsys,
		OnOutcome: func(o reorg.Outcome) {
			if o.State == reorg.StatePlanned {
				planned = append(planned, o.Target)
			}
		},
	})

	assertFiles(t, root, "ab", "cafebabe", "de/ad/deadbeef", "deadbeef")
	if fsys.Mutations() != 0 {
		t.Fatalf("expected no mutations in dry run, got %d", fsys.Mutations())
	}
	if !report.DryRun || report.Planned != 1 || report.Failed != 1 || report.InPlace != 1 || report.Unclassifiable != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(planned) != 1 || planned[0] != filepath.Join(root, "ca", "fe", "cafebabe") {
		t.Fatalf("unexpected planned targets %v", planned)
	}
}

func TestRunDryRunMatchesRealRunOnSharedTarget(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "deadbeef", "x/deadbeef")

	var failed []reorg.Outcome
	report := run(t, root, reorg.Options{
		Spec:   mustSpec(t, 2),
		DryRun: true,
		OnOutcome: func(o reorg.Outcome) {
			if o.State == reorg.StateFailed {
				failed = append(failed, o)
			}
		},
	})

	if report.Planned != 1 || report.Failed != 1 {
		t.Fatalf("expected one planned and one failed, got %+v", report)
	}
	if len(failed) != 1 || failed[0].Path != filepath.Join(root, "x", "deadbeef") || !errors.Is(failed[0].Err, reorg.ErrTargetExists) {
		t.Fatalf("unexpected failed outcomes %+v", failed)
	}

	actual := run(t, root, reorg.Options{Spec: mustSpec(t, 2)})
	if actual.Moved != report.Planned || actual.Failed != report.Failed {
		t.Fatalf("real run %+v disagrees with dry run %+v", actual, report)
	}
}

func TestRunIgnoresSymlinks(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "de/ad/deadbeef")
	if err := os.Symlink(filepath.Join(root, "de", "ad", "deadbeef"), filepath.Join(root, "cafebabe")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	report := run(t, root, reorg.Options{Spec: mustSpec(t, 2)})

	if report.Scanned != 1 || report.Moved != 0 {
		t.Fatalf("expected symlink ignored, got %+v", report)
	}
	if _, err := os.Lstat(filepath.Join(root, "cafebabe")); err != nil {
		t.Fatalf("expected symlink left in place: %v", err)
	}
}

func TestRunReportsUnreadableDirectories(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	testsupport.WriteTree(t, root, "locked/deadbeef", "cafebabe")
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var walkFailures int
	report := run(t, root, reorg.Options{
		Spec: mustSpec(t, 2),
		OnOutcome: func(o reorg.Outcome) {
			if o.Step == reorg.StepWalk {
				walkFailures++
			}
		},
	})

	if walkFailures != 1 || report.Failed != 1 || report.Moved != 1 {
		t.Fatalf("unexpected report %+v walkFailures=%d", report, walkFailures)
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "deadbeef", "cafebabe")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := reorg.Run(ctx, root, reorg.Options{Spec: mustSpec(t, 2), Logger: logging.NewNop()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Moved != 0 || report.Scanned != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	assertFiles(t, root, "cafebabe", "deadbeef")
}

type memoryRecorder struct {
	began    int
	finished []reorg.Report
	outcomes []reorg.Outcome
	fail     error
}

func (m *memoryRecorder) BeginRun(context.Context, reorg.Report) error {
	m.began++
	return m.fail
}

func (m *memoryRecorder) RecordOutcome(_ context.Context, _ string, o reorg.Outcome) error {
	m.outcomes = append(m.outcomes, o)
	return m.fail
}

func (m *memoryRecorder) FinishRun(_ context.Context, r reorg.Report) error {
	m.finished = append(m.finished, r)
	return m.fail
}

func TestRunNotifiesRecorder(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "deadbeef", "ab")
	rec := &memoryRecorder{}

	report := run(t, root, reorg.Options{Spec: mustSpec(t, 2), Recorder: rec, RunID: "run-1"})

	if rec.began != 1 || len(rec.outcomes) != 2 || len(rec.finished) != 1 {
		t.Fatalf("unexpected recorder calls %+v", rec)
	}
	if report.RunID != "run-1" || rec.finished[0].Moved != 1 {
		t.Fatalf("unexpected final report %+v", rec.finished[0])
	}
}

func TestRunDetachesFailingRecorder(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteTree(t, root, "deadbeef")
	rec := &memoryRecorder{fail: errors.New("disk full")}

	report := run(t, root, reorg.Options{Spec: mustSpec(t, 2), Recorder: rec})

	if report.Moved != 1 {
		t.Fatalf("expected run to proceed, got %+v", report)
	}
	if rec.began != 1 || len(rec.outcomes) != 0 || len(rec.finished) != 0 {
		t.Fatalf("expected recorder detached after first failure, got %+v", rec)
	}
}

func TestDecide(t *testing.T) {
	spec := mustSpec(t, 2)
	tests := []struct {
		entry reorg.Entry
		want  reorg.State
	}{
		{reorg.Entry{Name: "ab"}, reorg.StateUnclassifiable},
		{reorg.Entry{Name: "deadbeef", CurrentDir: []string{"de", "ad"}}, reorg.StateInPlace},
		{reorg.Entry{Name: "deadbeef", CurrentDir: []string{"DE", "AD"}}, reorg.StateInPlace},
		{reorg.Entry{Name: "deadbeef"}, reorg.StateMoved},
		{reorg.Entry{Name: "deadbeef", CurrentDir: []string{"de", "ad", "be", "ef"}}, reorg.StateMoved},
	}
	for _, tt := range tests {
		if _, got := reorg.Decide(tt.entry, spec); got != tt.want {
			t.Fatalf("Decide(%+v) = %s, want %s", tt.entry, got, tt.want)
		}
	}
}

func TestParsePruneMode(t *testing.T) {
	for input, want := range map[string]reorg.PruneMode{
		"":       reorg.PruneNested,
		"nested": reorg.PruneNested,
		" ANY ":  reorg.PruneAny,
		"off":    reorg.PruneOff,
	} {
		got, err := reorg.ParsePruneMode(input)
		if err != nil || got != want {
			t.Fatalf("ParsePruneMode(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := reorg.ParsePruneMode("always"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
