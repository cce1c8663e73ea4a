package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crowd-canvas",
		Short: "Crowd Control SimpleTCP client for a drawing canvas",
		Long: `crowd-canvas connects to a Crowd Control controller over SimpleTCP
(NUL-terminated JSON) and applies viewer-triggered effects to the canvas:
rotations, flips and brush presets, including timed spins.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		effectsCmd(),
		versionCmd(),
	)
	return rootCmd
}
