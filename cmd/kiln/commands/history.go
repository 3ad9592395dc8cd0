package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent deployment runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if app.history == nil {
				return fmt.Errorf("history store is not configured")
			}

			deploys, err := app.history.ListDeploys(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(deploys) == 0 {
				fmt.Println("No deployments recorded")
				return nil
			}

			fmt.Printf("%-36s  %-11s  %-10s  %-20s  %s\n",
				"RUN ID", "MODE", "STATE", "STARTED", "TESTS")
			for _, d := range deploys {
				tests := "-"
				if d.TestsTotal != nil {
					tests = fmt.Sprintf("%d/%d passed", *d.TestsPassed, *d.TestsTotal)
				}
				fmt.Printf("%-36s  %-11s  %-10s  %-20s  %s\n",
					d.ID, d.Mode, d.State,
					d.StartedAt.Format(time.RFC3339), tests)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}
