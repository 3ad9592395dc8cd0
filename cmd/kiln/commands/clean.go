package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Wipe the runtime workspace",
		Long: `Recursively remove all workspace contents with no container action.

Write permission is restored on locked-down trees first so deletion can
succeed. Use this to guarantee a pristine rebuild on the next deploy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := app.orch.Clean(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("Workspace cleaned")
			return nil
		},
	}
	return cmd
}
