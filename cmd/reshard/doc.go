// Package main hosts the reshard CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into reorganization runs
// over one or more roots, dry-run plans, preflight checks, journal queries,
// and configuration scaffolding. Configuration and logger construction live
// in the command context so subcommands only deal with presentation.
//
// Keep this package thin: behavior belongs in internal/reorg and its
// supporting packages; commands here parse arguments and render results.
package main
