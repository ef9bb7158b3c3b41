package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reshard/internal/reorg"
	"reshard/internal/rootlock"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep <dir> [dir...]",
		Short: "Remove empty directories left below each root",
		Long: "Removes every empty directory below each root, deepest first. Useful after runs\n" +
			"with --prune nested or off, which leave emptied directories outside the new layout.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			failures := 0
			for _, root := range args {
				abs, err := reorg.ResolveRoot(root)
				if err != nil {
					fmt.Fprintln(out, renderStatusLine(root, statusError, err.Error(), colorize))
					return showUsage(cmd, "")
				}
				var lock *rootlock.Lock
				if cfg.Shard.LockRoots && !dryRun {
					if lock, err = rootlock.Acquire(cfg.LockDir(), abs); err != nil {
						if errors.Is(err, rootlock.ErrLocked) {
							fmt.Fprintln(out, renderStatusLine(abs, statusError, "locked by another reshard process", colorize))
						}
						return err
					}
				}
				result, err := reorg.SweepEmpty(commandCtx(cmd), abs, reorg.SweepOptions{DryRun: dryRun, Logger: logger})
				_ = lock.Release()
				if err != nil {
					return err
				}

				verb := "removed"
				if dryRun {
					verb = "would be removed"
				}
				kind := statusOK
				message := fmt.Sprintf("%d empty directories %s", len(result.Removed), verb)
				if len(result.Errors) > 0 {
					kind = statusWarn
					message += fmt.Sprintf(", %d errors", len(result.Errors))
					failures += len(result.Errors)
				}
				fmt.Fprintln(out, renderStatusLine(abs, kind, message, colorize))
				for _, e := range result.Errors {
					fmt.Fprintln(out, renderStatusLine(relativeTo(abs, e.Path), statusError, e.Err.Error(), colorize))
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d director(ies) could not be examined or removed", failures)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "List empty directories without removing them")
	return cmd
}
