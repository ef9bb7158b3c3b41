package reorg

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"reshard/internal/logging"
	"reshard/internal/shard"
)

// pruneFloor returns how many leading segments of the source directory must
// survive pruning, or -1 when the source directory is not eligible at all.
func pruneFloor(mode PruneMode, current, expected []string) int {
	switch mode {
	case PruneNested:
		if len(current) > len(expected) && shard.HasPrefix(current, expected) {
			return len(expected)
		}
		return -1
	case PruneAny:
		if len(current) == 0 {
			return -1
		}
		return 0
	default:
		return -1
	}
}

// prune removes the moved file's source directory once it is confirmed empty,
// then keeps climbing while ancestors are empty and above the floor.
func (r *runner) prune(logger *slog.Logger, outcome *Outcome) {
	floor := pruneFloor(r.opts.Prune, outcome.CurrentDir, outcome.ExpectedDir)
	if floor < 0 {
		return
	}

	dir := filepath.Dir(outcome.Path)
	for depth := len(outcome.CurrentDir); depth > floor; depth-- {
		entries, err := r.fs.ReadDir(dir)
		if err != nil {
			r.pruneFailed(logger, outcome, dir, fmt.Errorf("read %s: %w", dir, err))
			return
		}
		if len(entries) > 0 {
			if len(outcome.Pruned) == 0 {
				outcome.Prune = PruneKept
				logger.Debug("source directory not empty; keeping", logging.String("dir", dir))
			}
			return
		}
		logger.Info("removing directory", logging.String("dir", dir))
		if err := r.fs.Remove(dir); err != nil {
			r.pruneFailed(logger, outcome, dir, fmt.Errorf("remove %s: %w", dir, err))
			return
		}
		outcome.Prune = PruneRemoved
		outcome.Pruned = append(outcome.Pruned, dir)
		dir = filepath.Dir(dir)
	}
}

func (r *runner) pruneFailed(logger *slog.Logger, outcome *Outcome, dir string, err error) {
	outcome.Prune = PruneFailed
	outcome.PruneErr = err
	logging.WarnWithContext(logger, "cannot remove emptied directory", "prune_failed",
		logging.String("dir", dir),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "remove the directory by hand if it is empty"),
		logging.String(logging.FieldImpact, "empty directory left behind; file was moved"),
	)
}
