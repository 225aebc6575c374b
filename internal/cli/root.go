// Package cli wires the agentcore Cobra command tree: run, resume, status,
// and memory, around cobra.Command and a shared root.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set by goreleaser via ldflags.
	Version = "dev"

	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "agentcore",
	Short: "Autonomous coding agent run orchestrator",
	Long: `agentcore drives an autonomous coding agent through a goal to
completion: it decides actions, executes them inside a sandbox, verifies
the result, and checkpoints progress so a run can resume after an
interruption.

Core Commands:
  agentcore run <goal>     Start a new run against a workspace
  agentcore resume <goal>  Resume the most recent resumable checkpoint
  agentcore status <id>    Show a run's checkpointed progress
  agentcore memory ...     Inspect or transfer a workspace's long-term memory`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.SetVersionTemplate(fmt.Sprintf("agentcore version %s\n", Version))
}

func exitError(msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}
