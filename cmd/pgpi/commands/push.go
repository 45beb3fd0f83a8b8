package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/database"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/pushparam"
)

// newPushCommand formats a query's fitted regression parameter tree
// (spec §4.10) and writes it to the query_plan.reg table, the Go
// analogue of push_param.py's write path.
func newPushCommand(app *App) *cobra.Command {
	var queryID, planID int64
	var dsn string
	cmd := &cobra.Command{
		Use:   "push <serverId>",
		Short: "Push a query's formatted regression parameters to query_plan.reg",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID := args[0]
			tree, ok, err := app.Repo.RegressionParams(serverID, queryID, planID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no fitted regression parameters for queryid=%d planid=%d", queryID, planID)
			}

			record := pushparam.FormatTree(tree.Root)

			if dsn == "" {
				fmt.Fprintln(cmd.OutOrStdout(), record)
				return nil
			}

			db, err := database.Open("postgres", dsn, database.DefaultPoolConfig(), app.Logger)
			if err != nil {
				return err
			}
			defer db.Close()

			w := pushparam.NewSQLWriter(db)
			if err := w.WriteParams(cmd.Context(), queryID, tree.SortSpaceUsed, record); err != nil {
				return fmt.Errorf("writing regression params: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed regression parameters for queryid=%d\n", queryID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&queryID, "queryid", 0, "Query id")
	cmd.Flags().Int64Var(&planID, "planid", 0, "Plan id")
	cmd.Flags().StringVar(&dsn, "dsn", "", "libpq connection string to write into (omit to print the record instead)")
	cmd.MarkFlagRequired("queryid")
	cmd.MarkFlagRequired("planid")
	return cmd
}
