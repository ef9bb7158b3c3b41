package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"reshard/internal/reorg"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 28
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderReportLine summarizes one root. Runs with per-file failures are
// flagged as warnings; the root itself was processed.
func renderReportLine(report reorg.Report, colorize bool) string {
	kind := statusOK
	if !report.Clean() {
		kind = statusWarn
	}
	return renderStatusLine(report.Root, kind, reportSummary(report), colorize)
}

func reportSummary(report reorg.Report) string {
	parts := make([]string, 0, 6)
	if report.DryRun {
		parts = append(parts, fmt.Sprintf("%d to move", report.Planned))
	} else {
		parts = append(parts, fmt.Sprintf("%d moved", report.Moved))
	}
	parts = append(parts,
		fmt.Sprintf("%d in place", report.InPlace),
		fmt.Sprintf("%d unclassifiable", report.Unclassifiable),
		fmt.Sprintf("%d failed", report.Failed),
	)
	if report.DirsPruned > 0 || report.PruneFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d dirs pruned", report.DirsPruned))
	}
	if report.PruneFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d prune failures", report.PruneFailed))
	}
	return strings.Join(parts, ", ")
}

func renderReportTable(reports []reorg.Report) string {
	headers := []string{"Root", "Depth", "Scanned", "Moved", "In place", "Unclassifiable", "Failed", "Pruned"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(reports))
	var total reorg.Report
	for _, r := range reports {
		moved := r.Moved
		if r.DryRun {
			moved = r.Planned
		}
		rows = append(rows, []string{
			r.Root,
			strconv.Itoa(r.Depth),
			strconv.Itoa(r.Scanned),
			strconv.Itoa(moved),
			strconv.Itoa(r.InPlace),
			strconv.Itoa(r.Unclassifiable),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.DirsPruned),
		})
		total.Scanned += r.Scanned
		total.Moved += moved
		total.InPlace += r.InPlace
		total.Unclassifiable += r.Unclassifiable
		total.Failed += r.Failed
		total.DirsPruned += r.DirsPruned
	}
	footer := []string{
		"Total", "",
		strconv.Itoa(total.Scanned),
		strconv.Itoa(total.Moved),
		strconv.Itoa(total.InPlace),
		strconv.Itoa(total.Unclassifiable),
		strconv.Itoa(total.Failed),
		strconv.Itoa(total.DirsPruned),
	}
	return renderTable(headers, rows, aligns, footer)
}

func renderPlanTable(root string, planned []reorg.Outcome) string {
	rows := make([][]string, 0, len(planned))
	for _, o := range planned {
		rows = append(rows, []string{relativeTo(root, o.Path), relativeTo(root, o.Target)})
	}
	return renderTable([]string{"File", "Destination"}, rows, nil, nil)
}
