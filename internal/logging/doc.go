// Package logging assembles the structured slog loggers used by reshard.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// attribute helpers that keep per-file progress lines uniform: every line
// emitted during a run carries the run ID and root so a log file that mixes
// several roots can still be filtered. A no-op logger is provided for tests
// and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup.
package logging
