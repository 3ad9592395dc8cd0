// Package commands implements the kiln CLI: one verb per deployment mode,
// non-zero process exit on failure.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kiln",
		Short: "Kiln - Agent Deployment Orchestrator",
		Long: `Kiln deploys and tests a containerized, self-modifying agent.

The agent's operating logic lives in a version-controlled source tree and is
mirrored into a mutable runtime workspace on every deployment. Kiln enforces
the read-only/read-write boundary between the two, preserves accumulated
agent state across deployments, drives the container through its lifecycle,
and runs the embedded test suite inside the running instance.

Deployment modes:
  - deploy:      replace logic, merge data, lock down, start, smoke-check
  - test-deploy: full suite run; never leaves the service running
  - full-reset:  discard all accumulated agent state, then deploy
  - task-reset:  inject one fresh directive, then deploy
  - clean:       wipe the workspace with no container action`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "kiln.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newTestDeployCommand())
	rootCmd.AddCommand(newFullResetCommand())
	rootCmd.AddCommand(newTaskResetCommand())
	rootCmd.AddCommand(newCleanCommand())
	rootCmd.AddCommand(newLogsCommand())
	rootCmd.AddCommand(newSnapshotCommand())
	rootCmd.AddCommand(newApplyPatchCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
