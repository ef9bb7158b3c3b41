// Package journal persists reorganization history in SQLite.
//
// Each run gets one row keyed by its run ID with the final counters, and each
// file that moved, would move, or failed gets an outcome row. Files that were
// already in place or unclassifiable only contribute to the run counters so a
// journal over a large converged depot stays small.
//
// Store implements reorg.Recorder and backs the "history" command.
package journal
