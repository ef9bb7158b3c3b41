package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reshard/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(store *journal.Store) error {
				runs, err := store.RecentRuns(commandCtx(cmd), limit)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]runView, 0, len(runs))
					for _, r := range runs {
						views = append(views, newRunView(r))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderRunsTable(runs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and the files it moved or failed to move",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(store *journal.Store) error {
				run, err := store.GetRun(commandCtx(cmd), args[0])
				if err != nil {
					return err
				}
				entries, err := store.Outcomes(commandCtx(cmd), run.ID)
				if err != nil {
					return err
				}
				if asJSON {
					view := newRunView(run)
					for _, e := range entries {
						view.Outcomes = append(view.Outcomes, newOutcomeView(e))
					}
					return writeJSON(cmd, view)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Run "+run.ID, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Root", statusInfo, run.Root, colorize))
				fmt.Fprintln(out, renderStatusLine("Depth", statusInfo, strconv.Itoa(run.Depth), colorize))
				fmt.Fprintln(out, renderStatusLine("Dry run", statusInfo, yesNo(run.DryRun), colorize))
				fmt.Fprintln(out, renderStatusLine("Started", statusInfo, formatTimestamp(run.StartedAt), colorize))
				if run.Finished() {
					fmt.Fprintln(out, renderStatusLine("Elapsed", statusInfo, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Finished", statusWarn, "never (interrupted)", colorize))
				}
				kind := statusOK
				if run.Failed > 0 || run.PruneFailed > 0 {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Result", kind, runSummary(run), colorize))

				if len(entries) > 0 {
					fmt.Fprintln(out, renderOutcomesTable(run.Root, entries))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func runSummary(run journal.Run) string {
	moved := fmt.Sprintf("%d moved", run.Moved)
	if run.DryRun {
		moved = fmt.Sprintf("%d to move", run.Planned)
	}
	return fmt.Sprintf("%d scanned, %s, %d in place, %d unclassifiable, %d failed, %d dirs pruned",
		run.Scanned, moved, run.InPlace, run.Unclassifiable, run.Failed, run.DirsPruned)
}

func renderRunsTable(runs []journal.Run) string {
	headers := []string{"Run", "Started", "Root", "Depth", "Moved", "Failed", "Status"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		moved := r.Moved
		if r.DryRun {
			moved = r.Planned
		}
		rows = append(rows, []string{
			shortRunID(r.ID),
			formatTimestamp(r.StartedAt),
			r.Root,
			strconv.Itoa(r.Depth),
			strconv.Itoa(moved),
			strconv.Itoa(r.Failed),
			runStatus(r),
		})
	}
	return renderTable(headers, rows, aligns, nil)
}

func renderOutcomesTable(root string, entries []journal.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.Error
		if detail == "" && e.Prune != "" {
			detail = "prune " + string(e.Prune)
		}
		target := ""
		if e.Target != "" {
			target = relativeTo(root, e.Target)
		}
		rows = append(rows, []string{string(e.State), relativeTo(root, e.Path), target, detail})
	}
	return renderTable([]string{"State", "File", "Destination", "Detail"}, rows, nil, nil)
}

func runStatus(r journal.Run) string {
	switch {
	case !r.Finished():
		return "interrupted"
	case r.DryRun:
		return "dry run"
	case r.Failed > 0 || r.PruneFailed > 0:
		return "partial"
	default:
		return "clean"
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

type runView struct {
	ID             string        `json:"id"`
	Root           string        `json:"root"`
	Depth          int           `json:"depth"`
	DryRun         bool          `json:"dry_run"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	Scanned        int           `json:"scanned"`
	Moved          int           `json:"moved"`
	Planned        int           `json:"planned"`
	InPlace        int           `json:"in_place"`
	Unclassifiable int           `json:"unclassifiable"`
	Failed         int           `json:"failed"`
	DirsCreated    int           `json:"dirs_created"`
	DirsPruned     int           `json:"dirs_pruned"`
	PruneFailed    int           `json:"prune_failed"`
	Outcomes       []outcomeView `json:"outcomes,omitempty"`
}

type outcomeView struct {
	Path       string    `json:"path"`
	Target     string    `json:"target,omitempty"`
	State      string    `json:"state"`
	Step       string    `json:"step,omitempty"`
	Error      string    `json:"error,omitempty"`
	Prune      string    `json:"prune,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

func newRunView(r journal.Run) runView {
	view := runView{
		ID:             r.ID,
		Root:           r.Root,
		Depth:          r.Depth,
		DryRun:         r.DryRun,
		StartedAt:      r.StartedAt,
		Scanned:        r.Scanned,
		Moved:          r.Moved,
		Planned:        r.Planned,
		InPlace:        r.InPlace,
		Unclassifiable: r.Unclassifiable,
		Failed:         r.Failed,
		DirsCreated:    r.DirsCreated,
		DirsPruned:     r.DirsPruned,
		PruneFailed:    r.PruneFailed,
	}
	if r.Finished() {
		finished := r.FinishedAt
		view.FinishedAt = &finished
	}
	return view
}

func newOutcomeView(e journal.Entry) outcomeView {
	return outcomeView{
		Path:       e.Path,
		Target:     e.Target,
		State:      string(e.State),
		Step:       string(e.Step),
		Error:      e.Error,
		Prune:      string(e.Prune),
		RecordedAt: e.RecordedAt,
	}
}
