// Package commands implements the pgpi CLI's subcommand tree: the
// repository lifecycle operations (create/get/push/show/check/rename/
// delete/reset/recalc) and the live progress viewer, each built as one
// *cobra.Command bound to a shared App (spec §6).
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/database-intelligence-mvp/pgplaninspector/internal/config"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/logging"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/pgpierr"
	"github.com/database-intelligence-mvp/pgplaninspector/internal/repository"
)

// App bundles the dependencies every subcommand needs: the logger, the
// loaded hosts.conf, and the repository rooted at its --repo-dir.
type App struct {
	Logger  *zap.Logger
	Hosts   *config.RepositoryConfig
	Repo    *repository.FileRepository
	Metrics *commandMetrics
}

// serverConfig resolves serverID against the loaded hosts.conf, failing
// with the same ConfigInvalid kind load_hosts_conf itself would raise.
func (a *App) serverConfig(serverID string) (config.ServerConfig, error) {
	sc, ok := a.Hosts.ByServerID(serverID)
	if !ok {
		return config.ServerConfig{}, pgpierr.New(pgpierr.ConfigInvalid,
			fmt.Sprintf("serverId %q not found in %s", serverID, a.Hosts.Path))
	}
	return sc, nil
}

// NewRootCommand builds the full pgpi command tree. hostsConfPath and
// repoDir are read once at startup from persistent flags; the App they
// produce is threaded into every subcommand's RunE closure.
func NewRootCommand() *cobra.Command {
	var hostsConfPath string
	var repoDir string
	var logLevel string
	var cacheSize int
	var metricsAddr string

	app := &App{Metrics: newCommandMetrics()}

	root := &cobra.Command{
		Use:           "pgpi",
		Short:         "Inspect and estimate progress of running PostgreSQL queries",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupApp(app, hostsConfPath, repoDir, logLevel, cacheSize); err != nil {
				return err
			}
			serveMetrics(metricsAddr, app.Metrics)
			app.Metrics.invocations.WithLabelValues(cmd.Name()).Inc()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&hostsConfPath, "hosts-conf", "hosts.conf", "Path to hosts.conf")
	root.PersistentFlags().StringVar(&repoDir, "repo-dir", ".pgpi", "Repository base directory")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().IntVar(&cacheSize, "cache-size", 256, "Regression/grouping parsed-tree LRU cache size")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus /metrics on (empty disables it)")

	root.AddCommand(
		newCreateCommand(app),
		newGetCommand(app),
		newPushCommand(app),
		newShowCommand(app),
		newCheckCommand(app),
		newRenameCommand(app),
		newDeleteCommand(app),
		newResetCommand(app),
		newRecalcCommand(app),
		newProgressCommand(app),
	)

	return root
}

func setupApp(app *App, hostsConfPath, repoDir, logLevel string, cacheSize int) error {
	l, err := logging.New(logLevel)
	if err != nil {
		return err
	}
	app.Logger = l

	hosts, err := config.LoadHostsConf(hostsConfPath)
	if err != nil {
		return err
	}
	app.Hosts = hosts

	repo, err := repository.NewFileRepository(repoDir, cacheSize)
	if err != nil {
		return err
	}
	app.Repo = repo

	return nil
}

// promptPassword reads a password from stdin for servers whose hosts.conf
// entry sets input_password, following SPEC_FULL.md's choice of plain
// fmt.Scanln over a TTY-masking library (none of the example repos wire one).
func promptPassword(serverID string) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for %s: ", serverID)
	var pw string
	if _, err := fmt.Scanln(&pw); err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return pw, nil
}
