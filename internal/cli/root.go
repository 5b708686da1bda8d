// Package cli implements the ema-room commands.
package cli

import (
	"github.com/spf13/cobra"
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "ema-room",
	Short: "A soul trapped in a room",
	Long: "Runs the room server a soul lives in, or a terminal client that talks to it, " +
		"drops objects into its room and plays back what it says.",
	SilenceUsage: true,
}
