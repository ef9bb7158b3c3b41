package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reshard/internal/config"
	"reshard/internal/journal"
	"reshard/internal/logging"
	"reshard/internal/reorg"
	"reshard/internal/rootlock"
	"reshard/internal/shard"
)

type runOptions struct {
	dryRun    bool
	prune     string
	noJournal bool
	strict    bool
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Report planned moves without changing anything")
	cmd.Flags().StringVar(&opts.prune, "prune", "", "Emptied directory cleanup: nested, any or off (default from config)")
	cmd.Flags().BoolVar(&opts.noJournal, "no-journal", false, "Do not record this run in the journal")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit non-zero when any file could not be reorganized")
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <mode> <dir> [dir...]",
		Short: "Reorganize one or more roots (same as the bare form)",
		Long:  rootLongHelp(),
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, ctx, args, opts)
		},
	}
	addRunFlags(cmd, &opts)
	return cmd
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "plan <mode> <dir> [dir...]",
		Short: "List the moves a run would make",
		Long:  rootLongHelp(),
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.dryRun = true
			return executeRun(cmd, ctx, args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.prune, "prune", "", "Emptied directory cleanup: nested, any or off (default from config)")
	cmd.Flags().BoolVar(&opts.noJournal, "no-journal", false, "Do not record this plan in the journal")
	return cmd
}

// resolveArgs splits args into a spec and roots. With a single argument the
// configured default mode is used when one is set.
func resolveArgs(cmd *cobra.Command, cfg *config.Config, args []string) (shard.Spec, []string, error) {
	mode := ""
	var roots []string
	switch {
	case len(args) >= 2:
		mode, roots = args[0], args[1:]
	case len(args) == 1 && cfg != nil && strings.TrimSpace(cfg.Shard.DefaultMode) != "":
		mode, roots = cfg.Shard.DefaultMode, args
	default:
		return shard.Spec{}, nil, showUsage(cmd, "At least 2 arguments are required")
	}
	spec, err := shard.ParseSpec(mode)
	if err != nil {
		return shard.Spec{}, nil, showUsage(cmd, fmt.Sprintf("%s is not a valid depth", mode))
	}
	return spec, roots, nil
}

func executeRun(cmd *cobra.Command, cc *commandContext, args []string, opts runOptions) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	spec, roots, err := resolveArgs(cmd, cfg, args)
	if err != nil {
		return err
	}

	pruneValue := opts.prune
	if strings.TrimSpace(pruneValue) == "" {
		pruneValue = cfg.Shard.Prune
	}
	prune, err := reorg.ParsePruneMode(pruneValue)
	if err != nil {
		return fmt.Errorf("--prune: %w", err)
	}

	logger, err := cc.ensureLogger()
	if err != nil {
		return err
	}

	ctx := commandCtx(cmd)
	recorder := openRecorder(cfg, opts, logger)
	if recorder != nil {
		defer recorder.Close()
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	var reports []reorg.Report
	for _, root := range roots {
		var planned []reorg.Outcome
		runOpts := reorg.Options{
			Spec:   spec,
			Prune:  prune,
			DryRun: opts.dryRun,
			Logger: logger,
			OnOutcome: func(o reorg.Outcome) {
				if o.State == reorg.StatePlanned {
					planned = append(planned, o)
				}
			},
		}
		if recorder != nil {
			runOpts.Recorder = recorder
		}

		report, err := reorganizeRoot(ctx, cfg, root, runOpts)
		switch {
		case errors.Is(err, reorg.ErrRootInvalid):
			fmt.Fprintln(out, renderStatusLine(root, statusError, err.Error(), colorize))
			return showUsage(cmd, "")
		case errors.Is(err, rootlock.ErrLocked):
			fmt.Fprintln(out, renderStatusLine(root, statusError, "locked by another reshard process", colorize))
			return err
		case err != nil && report.RunID == "":
			return err
		}

		reports = append(reports, report)
		fmt.Fprintln(out, renderReportLine(report, colorize))
		if opts.dryRun && len(planned) > 0 {
			fmt.Fprintln(out, renderPlanTable(report.Root, planned))
		}
		if err != nil {
			// Interrupted between files; what was done is reported above.
			return err
		}
	}

	if len(reports) > 1 {
		fmt.Fprintln(out, renderReportTable(reports))
	}

	if opts.strict {
		if failed := countFailures(reports); failed > 0 {
			return fmt.Errorf("%d file(s) could not be reorganized", failed)
		}
	}
	return nil
}

// openRecorder opens the journal for a run. A journal that cannot be opened
// is reported and the run continues without history.
func openRecorder(cfg *config.Config, opts runOptions, logger *slog.Logger) *journal.Store {
	if opts.noJournal || !cfg.Journal.Enabled {
		return nil
	}
	store, err := journal.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "run journal unavailable", "journal_open_failed",
			logging.String("path", cfg.Journal.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal.path or run with --no-journal"),
			logging.String(logging.FieldImpact, "run history will not be recorded"),
		)
		return nil
	}
	return store
}

// reorganizeRoot validates root, takes the root lock when configured, and runs
// the reorganizer. Dry runs never lock.
func reorganizeRoot(ctx context.Context, cfg *config.Config, root string, opts reorg.Options) (reorg.Report, error) {
	abs, err := reorg.ResolveRoot(root)
	if err != nil {
		return reorg.Report{}, err
	}
	if cfg.Shard.LockRoots && !opts.DryRun {
		lock, err := rootlock.Acquire(cfg.LockDir(), abs)
		if err != nil {
			return reorg.Report{}, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logging.NewComponentLogger(opts.Logger, "rootlock").Warn("release failed",
					logging.String("lock", lock.Path()), logging.Error(err))
			}
		}()
	}
	return reorg.Run(ctx, abs, opts)
}

func countFailures(reports []reorg.Report) int {
	total := 0
	for _, r := range reports {
		total += r.Failed + r.PruneFailed
	}
	return total
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
