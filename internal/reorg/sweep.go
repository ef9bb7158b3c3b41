package reorg

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"reshard/internal/logging"
)

// SweepOptions configures SweepEmpty.
type SweepOptions struct {
	DryRun bool
	Logger *slog.Logger
	FS     FileSystem
}

// SweepResult contains the outcome of an empty directory sweep.
type SweepResult struct {
	Root    string
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory path with its cleanup error.
type SweepError struct {
	Path string
	Err  error
}

// SweepEmpty removes every empty directory below root, deepest first, so a
// chain of directories that only held each other is removed as a whole. The
// root itself is never removed. In a dry run Removed lists what would go.
func SweepEmpty(ctx context.Context, root string, opts SweepOptions) (SweepResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	abs, err := ResolveRoot(root)
	if err != nil {
		return SweepResult{}, err
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	logger := logging.NewComponentLogger(opts.Logger, "sweep").With(logging.String(logging.FieldRoot, abs))
	result := SweepResult{Root: abs}

	var dirs []string
	_ = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Err: err})
			if d != nil && d.IsDir() && path != abs {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() && path != abs {
			dirs = append(dirs, path)
		}
		return nil
	})

	sep := string(filepath.Separator)
	sort.SliceStable(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i], sep), strings.Count(dirs[j], sep)
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})

	gone := make(map[string]struct{})
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dir, Err: err})
			continue
		}
		remaining := 0
		for _, entry := range entries {
			if _, ok := gone[filepath.Join(dir, entry.Name())]; !ok {
				remaining++
			}
		}
		if remaining > 0 {
			continue
		}
		if !opts.DryRun {
			if err := fsys.Remove(dir); err != nil {
				result.Errors = append(result.Errors, SweepError{Path: dir, Err: err})
				logging.WarnWithContext(logger, "failed to remove empty directory", "sweep_failed",
					logging.String("dir", dir),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check directory permissions"),
					logging.String(logging.FieldImpact, "empty directory left behind"),
				)
				continue
			}
		}
		gone[dir] = struct{}{}
		result.Removed = append(result.Removed, dir)
		logger.Info("removed empty directory",
			logging.String("dir", dir),
			logging.Bool("dry_run", opts.DryRun),
			logging.String(logging.FieldEventType, "sweep"),
		)
	}

	logger.Info("sweep finished",
		logging.Int("removed", len(result.Removed)),
		logging.Int("errors", len(result.Errors)),
	)
	return result, nil
}
