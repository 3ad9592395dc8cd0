package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/pkg/engine"
	"github.com/kilnworks/kiln/pkg/patch"
)

func newApplyPatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply-patch [file]",
		Short: "Apply a patch file to the source tree",
		Long: `Apply an externally produced patch directly against the source tree,
never against the workspace. Without an argument the configured default
patch path is used.

The operation is atomic per file but not per invocation: rejected hunks
leave a partial apply that requires manual reconciliation. Run a deploy
afterwards to mirror accepted changes into the workspace.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			patchFile := filepath.Join(app.cfg.Paths.Root, app.cfg.Patch.DefaultFile)
			if len(args) == 1 {
				patchFile = args[0]
			}

			applier := patch.NewApplier(app.cfg.SourceDir(), nil, app.log)
			res, err := applier.Apply(cmd.Context(), patchFile)
			if err != nil {
				if engine.IsPartialPatch(err) && res != nil {
					fmt.Println("--- patch output ---")
					fmt.Println(res.Output)
				}
				return err
			}
			fmt.Println("Patch applied cleanly")
			return nil
		},
	}
	return cmd
}
