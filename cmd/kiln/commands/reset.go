package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/pkg/agentdata"
)

func newFullResetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "full-reset",
		Short: "Discard all accumulated agent state, then deploy",
		Long: `Force-overwrite the entire workspace data tree from the source tree's
seed defaults, then perform a standard deploy.

Every data file the agent has accumulated (memory stream, action queue,
resource state) is replaced. Seed data is validated before anything is
overwritten.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := app.orch.FullReset(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().
				Str("run_id", res.RunID).
				Str("state", string(res.State)).
				Msg("Full reset complete")
			return nil
		},
	}
	return cmd
}

func newTaskResetCommand() *cobra.Command {
	var taskFile string

	cmd := &cobra.Command{
		Use:   "task-reset",
		Short: "Inject a fresh task directive, then deploy",
		Long: `Force-overwrite one named data file from the source tree's seed default,
then perform a standard deploy.

Only the named file is replaced; every other accumulated data file is left
alone. The default target is the current task directive.`,
		Example: `  # Reset the current task directive
  kiln task-reset

  # Reset a specific data file
  kiln task-reset --file action_queue.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := app.orch.TaskReset(cmd.Context(), taskFile)
			if err != nil {
				return err
			}
			log.Info().
				Str("run_id", res.RunID).
				Str("file", taskFile).
				Str("state", string(res.State)).
				Msg("Task reset complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&taskFile, "file", agentdata.CurrentTaskFile, "data file to reset")
	return cmd
}
