package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/pkg/engine"
)

func newTestDeployCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-deploy",
		Short: "Deploy, run the full test suite, and tear down",
		Long: `Run the test-only deployment mode.

Identical to a standard deploy through container start, then:
  - Runs the full embedded test suite with a structured report
  - Translates the report into the normalized host-side summary
  - Unconditionally quiesces the instance

This mode never leaves the service running. The process exit code mirrors
the test outcome.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := app.orch.TestDeploy(cmd.Context())
			if res != nil && res.Tests != nil {
				log.Info().
					Str("status", res.Tests.Status).
					Int("total", res.Tests.Total).
					Int("passed", res.Tests.Passed).
					Int("failed", res.Tests.Failed).
					Msg("Test run complete")
				if res.ReportPath != "" {
					fmt.Printf("Normalized report: %s\n", res.ReportPath)
				}
			}
			if err != nil {
				if engine.IsContainerCrashed(err) && res.CrashLogs != "" {
					fmt.Println("--- container logs ---")
					fmt.Println(res.CrashLogs)
				}
				return err
			}
			return nil
		},
	}
	return cmd
}
