package preflight

import (
	"reshard/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks applicable to cfg and roots.
func RunAll(cfg *config.Config, roots []string) []Result {
	var results []Result

	for _, root := range roots {
		results = append(results, CheckDirectoryAccess("Root "+root, root))
	}

	if cfg == nil {
		return results
	}

	if cfg.Journal.Enabled || cfg.Shard.LockRoots {
		results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
		for _, root := range roots {
			results = append(results, CheckOutsideRoot("State directory placement", cfg.Paths.StateDir, root))
		}
	}
	if cfg.Paths.LogDir != "" {
		for _, root := range roots {
			results = append(results, CheckOutsideRoot("Log directory placement", cfg.Paths.LogDir, root))
		}
	}

	return results
}

// Failed filters results down to failures.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
