package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newCreateCommand scaffolds a fresh repository directory tree for a
// serverId: the hashed tables/grouping/regression/reg_params subdirs
// FileRepository expects, created lazily elsewhere on write but made
// explicit here so operators can inspect an empty repo before any data
// lands in it.
func newCreateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create <serverId>",
		Short: "Create an empty repository directory tree for a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID := args[0]
			if _, err := app.serverConfig(serverID); err != nil {
				return err
			}
			for _, sub := range []string{"tables/query", "tables/plan", "tables/plan_json", "grouping", "regression", "reg_params"} {
				dir := filepath.Join(app.Repo.BaseDir(), serverID, sub)
				if err := os.MkdirAll(dir, 0o770); err != nil {
					return fmt.Errorf("creating %s: %w", dir, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created repository tree for %s under %s\n", serverID, app.Repo.BaseDir())
			return nil
		},
	}
}

// newGetCommand prints one stored query/plan text pair by queryid and
// planid, the disk-backed analogue of pg_query_plan's live output.
func newGetCommand(app *App) *cobra.Command {
	var queryID, planID int64
	cmd := &cobra.Command{
		Use:   "get <serverId>",
		Short: "Print the stored query and plan text for a queryid/planid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID := args[0]
			query, plan, err := app.Repo.LoadQueryAndPlanText(serverID, queryID, planID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "-- query %d / plan %d --\n%s\n\n%s\n", queryID, planID, query, plan)
			return nil
		},
	}
	cmd.Flags().Int64Var(&queryID, "queryid", 0, "Query id")
	cmd.Flags().Int64Var(&planID, "planid", 0, "Plan id")
	cmd.MarkFlagRequired("queryid")
	cmd.MarkFlagRequired("planid")
	return cmd
}

// newRenameCommand relabels a repository directory from one serverId to
// another, matching repository.py's plain directory-rename semantics.
func newRenameCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <oldServerId> <newServerId>",
		Short: "Rename a repository's serverId directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldDir := filepath.Join(app.Repo.BaseDir(), args[0])
			newDir := filepath.Join(app.Repo.BaseDir(), args[1])
			if _, err := os.Stat(oldDir); err != nil {
				return fmt.Errorf("serverId %q has no repository directory: %w", args[0], err)
			}
			if err := os.Rename(oldDir, newDir); err != nil {
				return fmt.Errorf("renaming %s to %s: %w", oldDir, newDir, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

// newDeleteCommand removes a serverId's entire repository directory.
func newDeleteCommand(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <serverId>",
		Short: "Delete a server's repository directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to delete %q without --force", args[0])
			}
			dir := filepath.Join(app.Repo.BaseDir(), args[0])
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("deleting %s: %w", dir, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Confirm deletion")
	return cmd
}

// newResetCommand rewinds one processing tier's watermark back to zero
// so the next ingest pass reprocesses every row in query_plan.log.
func newResetCommand(app *App) *cobra.Command {
	var tier string
	cmd := &cobra.Command{
		Use:   "reset <serverId>",
		Short: "Reset a processing tier's watermark to zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Repo.SetWatermark(args[0], tier, 0); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s watermark for %s to 0\n", tier, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "tier", "tables", "Processing tier: tables, grouping, or regression")
	return cmd
}
