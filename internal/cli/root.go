// Package cli provides the command-line interface for the file monitor
// daemon: starting the long-running supervisor (`serve`) and the
// operator inspection/control commands (`config`, `datasource`, `queue`,
// `probe`) described in spec.md §6's "Operator controls" contract.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinesagetechnology/filemonitor/internal/logging"
	"github.com/pinesagetechnology/filemonitor/internal/version"
)

var (
	dbPath   string
	seedFile string
	verbose  bool
)

// NewRootCmd builds the root command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "filemonitor",
		Short: "Watches folders for new files and uploads them to blob storage",
		Long: `filemonitor watches one or more local folders for newly arrived files,
enqueues each as a durable upload job, and drains that queue to cloud
object storage with retries and post-upload disposition.

Configuration and data-source declarations live in a persistent store and
can be changed at runtime without a restart; run "filemonitor serve" to
start the background service, or use the "config"/"datasource"/"queue"
commands to inspect or adjust it while a service is running elsewhere
against the same database file.`,
		Version: version.Version + " (" + version.BuildTime + ")",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logging.SetGlobalLevel(0) // zerolog.DebugLevel
			}
		},
	}

	root.PersistentFlags().StringVar(&dbPath, "db", "filemonitor.db", "path to the SQLite persistence file")
	root.PersistentFlags().StringVarP(&seedFile, "config", "c", "", "optional INI seed file with initial data sources (first run only)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newDataSourceCmd())
	root.AddCommand(newQueueCmd())
	root.AddCommand(newProbeCmd())

	return root
}

// Execute runs the root command and returns its exit code's error, if any.
func Execute() error {
	return NewRootCmd().Execute()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
