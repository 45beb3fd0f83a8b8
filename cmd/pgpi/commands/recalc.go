package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/regression"
)

// newRecalcCommand refits one query/plan's regression parameter tree
// from its accumulated grouped sample tree and persists the result,
// the Go analogue of regression.py's batch fitting pass.
func newRecalcCommand(app *App) *cobra.Command {
	var queryID, planID int64
	cmd := &cobra.Command{
		Use:   "recalc <serverId>",
		Short: "Refit a query's regression parameters from its grouped samples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID := args[0]
			sample, err := app.Repo.GroupingSample(serverID, queryID, planID)
			if err != nil {
				return err
			}
			if sample == nil {
				return fmt.Errorf("no grouped sample for queryid=%d planid=%d; nothing to fit", queryID, planID)
			}

			tree := regression.Fit(sample)
			if err := app.Repo.SaveRegressionParams(serverID, queryID, planID, tree); err != nil {
				return fmt.Errorf("saving fitted parameters: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refit regression parameters for queryid=%d planid=%d\n", queryID, planID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&queryID, "queryid", 0, "Query id")
	cmd.Flags().Int64Var(&planID, "planid", 0, "Plan id")
	cmd.MarkFlagRequired("queryid")
	cmd.MarkFlagRequired("planid")
	return cmd
}
