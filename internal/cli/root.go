// Package cli implements the agentboard command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "agentboard",
	Short: "agentboard - shared task board for autonomous agents",
	Long: `agentboard coordinates autonomous agent processes over a shared
file-backed task board. Tasks move between a backlog, a working board,
and an archive through a strict lifecycle; concurrent claims are
resolved so that exactly one agent wins each task.

All state lives in plain YAML files, safe to inspect and repair by hand.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agentboard %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
