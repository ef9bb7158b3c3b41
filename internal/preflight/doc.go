// Package preflight provides readiness checks for the directories reshard
// touches.
//
// These checks run in two contexts:
//   - The CLI "check" command prints every result.
//   - Reorganization commands log failed checks as warnings before a run.
//     They never block a run; only a missing root is fatal, and that is
//     decided by the reorganizer itself.
package preflight
