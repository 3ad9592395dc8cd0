package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/pkg/snapshot"
)

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Serialize the project tree into one reviewable artifact",
		Long: `Produce a point-in-time textual artifact of the project: a directory
listing plus the full contents of every file, in stable order.

The runtime workspace, version-control internals and configured secret
files are always excluded. The artifact is meant for upload into a review
context with a soft size budget; exceeding the configured threshold warns
but does not fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			builder, err := snapshot.NewBuilder(snapshot.Options{
				Root:         app.cfg.Paths.Root,
				WorkspaceDir: app.cfg.WorkspaceDir(),
				Output:       app.cfg.Snapshot.Output,
				WarnBytes:    app.cfg.Snapshot.WarnBytes,
				Exclude:      app.cfg.Snapshot.Exclude,
			}, app.log)
			if err != nil {
				return err
			}

			path, size, err := builder.Build()
			if err != nil {
				return err
			}
			fmt.Printf("Snapshot written: %s (%d bytes)\n", path, size)
			return nil
		},
	}
	return cmd
}
