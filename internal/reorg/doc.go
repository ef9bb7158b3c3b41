// Package reorg moves content-addressed files into their sharded location
// under a root directory.
//
// A run snapshots every regular file below the root, derives each file's
// expected shard directory from its name, and moves files whose current
// directory differs (ignoring case). Target directories are created on demand
// and source directories left empty by a move are pruned according to the
// selected PruneMode.
//
// Only an unusable root aborts a run. Every per-file problem (directory
// creation, an occupied target, a failed rename, a failed prune) is reported as
// an Outcome and the run continues with the next file. A file is never removed
// unless its rename succeeded, so runs can be repeated until the tree converges;
// a second run over a converged tree moves nothing.
package reorg
