package reorg

import (
	"fmt"
	"strings"
	"time"

	"reshard/internal/config"
)

// State is the terminal state of a single file within a run.
type State string

const (
	// StateUnclassifiable marks names shorter than the depth requires.
	StateUnclassifiable State = "unclassifiable"
	// StateInPlace marks files already in their expected directory.
	StateInPlace State = "in_place"
	// StateMoved marks files renamed into their expected directory.
	StateMoved State = "moved"
	// StatePlanned marks files a dry run would move.
	StatePlanned State = "planned"
	// StateFailed marks files left where they were because a step failed.
	StateFailed State = "failed"
)

// Step names the operation that failed for StateFailed outcomes.
type Step string

const (
	StepWalk  Step = "walk"
	StepMkdir Step = "mkdir"
	StepMove  Step = "move"
)

// PruneState is the result of pruning after a successful move.
type PruneState string

const (
	PruneNotAttempted PruneState = ""
	PruneRemoved      PruneState = "removed"
	PruneKept         PruneState = "kept"
	PruneFailed       PruneState = "failed"
)

// PruneMode selects which emptied source directories are removed.
type PruneMode string

const (
	// PruneNested removes the source directory only when it lies inside the
	// file's new shard directory, climbing no higher than that directory.
	PruneNested PruneMode = config.PruneNested
	// PruneAny removes any emptied source directory and emptied ancestors
	// below the root.
	PruneAny PruneMode = config.PruneAny
	// PruneOff never removes directories.
	PruneOff PruneMode = config.PruneOff
)

// ParsePruneMode converts a configuration value into a PruneMode.
func ParsePruneMode(value string) (PruneMode, error) {
	switch mode := PruneMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case PruneNested, PruneAny, PruneOff:
		return mode, nil
	case "":
		return PruneNested, nil
	default:
		return "", fmt.Errorf("unsupported prune mode %q (expected nested, any or off)", value)
	}
}

// Entry is one file discovered during enumeration.
type Entry struct {
	// Path is the absolute file path.
	Path string
	// Name is the base name.
	Name string
	// CurrentDir holds the containing directory's segments relative to the root.
	CurrentDir []string
}

// Outcome describes what happened to one file.
type Outcome struct {
	Entry
	State State
	// ExpectedDir is set for every classifiable file.
	ExpectedDir []string
	// Target is the absolute destination for moved, planned, and move-failed files.
	Target string
	// Step and Err are set when State is StateFailed.
	Step Step
	Err  error
	// Prune and Pruned describe source directory cleanup after a move.
	Prune    PruneState
	Pruned   []string
	PruneErr error
}

// Report aggregates a run.
type Report struct {
	RunID          string
	Root           string
	Depth          int
	DryRun         bool
	Scanned        int
	Moved          int
	Planned        int
	InPlace        int
	Unclassifiable int
	Failed         int
	DirsCreated    int
	DirsPruned     int
	PruneFailed    int
	Started        time.Time
	Finished       time.Time
}

// Clean reports whether the run finished without per-file failures.
func (r Report) Clean() bool {
	return r.Failed == 0 && r.PruneFailed == 0
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

func (r *Report) add(o Outcome) {
	switch o.State {
	case StateMoved:
		r.Moved++
	case StatePlanned:
		r.Planned++
	case StateInPlace:
		r.InPlace++
	case StateUnclassifiable:
		r.Unclassifiable++
	case StateFailed:
		r.Failed++
	}
	r.DirsPruned += len(o.Pruned)
	if o.Prune == PruneFailed {
		r.PruneFailed++
	}
}
