// Package cmd defines the CLI of the orginfo harvester.
//
// A harvest walks the orginfo.uz search listing for a query, collects the
// organization links on each page, fetches every organization page, and writes
// the merged table to a workbook. Progress is checkpointed after every batch
// (to a local directory, GCS, or Postgres) so an interrupted run resumes where
// it stopped. Configuration comes from defaults, an optional YAML file,
// HARVEST_* environment variables and flags, in increasing priority.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orginfo-harvester",
		Short: "Resumable harvester for the orginfo.uz organization directory.",
		Long: `orginfo-harvester collects organization records from the orginfo.uz
search listing into a single spreadsheet. Runs are checkpointed after every
batch, so rerunning the same command after an interruption only fetches what
is still missing.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.AddCommand(newHarvestCmd())
	return cmd
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context; the
// harvest finishes its current batch before stopping.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
