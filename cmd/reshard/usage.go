package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reshard/internal/shard"
)

// errUsageShown signals that the usage text was already printed; main exits
// non-zero without repeating the message.
var errUsageShown = errors.New("usage shown")

func rootLongHelp() string {
	var b strings.Builder
	b.WriteString("Moves every file below each root into the directory named by successive\n")
	b.WriteString("two-character pairs of its filename, e.g. deadbeef at depth 2 goes to de/ad/deadbeef.\n\n")
	for _, preset := range shard.Presets() {
		fmt.Fprintf(&b, "Special modes for %d-deep: %s\n", preset.Depth, strings.Join(preset.Names, ", "))
	}
	b.WriteString("All other positive numbers are allowed")
	return b.String()
}

// showUsage prints message followed by the command help and returns errUsageShown.
func showUsage(cmd *cobra.Command, message string) error {
	if message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), message)
	}
	_ = cmd.Help()
	return errUsageShown
}
