package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	_ "github.com/lib/pq"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/database"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/progress"
)

// newProgressCommand is the interactive viewer's non-interactive core:
// it resolves one backend's live plan snapshot (and any parallel
// workers') via pg_query_plan(pid), merges and scores them, and prints
// a progress bar (spec §6, §4.9, §4.11).
func newProgressCommand(app *App) *cobra.Command {
	var pid int
	var dsn string
	var small bool

	cmd := &cobra.Command{
		Use:   "progress <serverId>",
		Short: "Print the live progress estimate for a running backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID := args[0]
			if dsn == "" {
				sc, err := app.serverConfig(serverID)
				if err != nil {
					return err
				}
				pw := sc.Password
				if sc.InputPassword {
					pw, err = promptPassword(serverID)
					if err != nil {
						return err
					}
				}
				dsn = sc.ConnectionString("postgres", pw)
			}

			db, err := database.Open("postgres", dsn, database.DefaultPoolConfig(), app.Logger)
			if err != nil {
				return err
			}
			defer db.Close()

			app.Metrics.progressCalls.Inc()

			records, err := fetchPlanRecords(cmd.Context(), db, pid)
			if err != nil {
				app.Metrics.progressErrors.Inc()
				return err
			}
			if len(records) == 0 {
				app.Metrics.progressErrors.Inc()
				return fmt.Errorf("no plan snapshot returned for pid %d; is that backend still running a query?", pid)
			}

			results, err := progress.QueryProgress(serverID, records, app.Repo)
			if err != nil {
				app.Metrics.progressErrors.Inc()
				return err
			}
			for _, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "queryid=%d %s\n", res.QueryID, progress.RenderBar(res.Progress, small))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pid, "pid", 0, "Backend process id to inspect")
	cmd.Flags().StringVar(&dsn, "dsn", "", "libpq connection string (overrides hosts.conf for this call)")
	cmd.Flags().BoolVar(&small, "small", false, "Render a narrower progress bar")
	cmd.MarkFlagRequired("pid")
	return cmd
}

// fetchPlanRecords calls pg_query_plan(pid) and decodes each returned
// row into a WorkerRecord. The function remains an external interface
// (spec §6): this is the one place this module issues SQL against it.
func fetchPlanRecords(ctx context.Context, db *sql.DB, pid int) ([]progress.WorkerRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT is_leader, queryid, planid, queryhash, plan_json FROM pg_query_plan($1)`, pid)
	if err != nil {
		return nil, fmt.Errorf("querying pg_query_plan: %w", err)
	}
	defer rows.Close()

	var out []progress.WorkerRecord
	for rows.Next() {
		var rec progress.WorkerRecord
		var planJSON []byte
		if err := rows.Scan(&rec.IsLeader, &rec.QueryID, &rec.PlanID, &rec.QueryHash, &planJSON); err != nil {
			return nil, fmt.Errorf("scanning pg_query_plan row: %w", err)
		}
		rec.PlanJSON = planJSON
		out = append(out, rec)
	}
	return out, rows.Err()
}
