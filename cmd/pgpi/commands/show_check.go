package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newShowCommand lists every server hosts.conf registers, the Go
// analogue of repository.py's show_hosts.
func newShowCommand(app *App) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List servers registered in hosts.conf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range app.Hosts.Servers {
				if verbose {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\thost=%s port=%d username=%s input_password=%v\n",
						s.ServerID, s.Host, s.Port, s.Username, s.InputPassword)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), s.ServerID)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show connection details too")
	return cmd
}

// newCheckCommand verifies a server's repository directory tree exists
// and reports each tier's current watermark, the analogue of
// repository.py's check_dirs.
func newCheckCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check <serverId>",
		Short: "Verify a server's repository directories and print watermarks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverID := args[0]
			if _, err := app.serverConfig(serverID); err != nil {
				return err
			}
			dir := filepath.Join(app.Repo.BaseDir(), serverID)
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("repository directory for %q missing: %w (run 'pgpi create %s' first)", serverID, err, serverID)
			}
			for _, tier := range []string{"tables", "grouping", "regression"} {
				wm, err := app.Repo.Watermark(serverID, tier)
				if err != nil {
					return fmt.Errorf("reading %s watermark: %w", tier, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s seqid=%d\n", tier, wm)
			}
			return nil
		},
	}
}
