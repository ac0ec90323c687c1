package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/orginfo-harvester/internal/app"
	"github.com/JakeFAU/orginfo-harvester/internal/config"
	"github.com/JakeFAU/orginfo-harvester/internal/logging"
	"github.com/JakeFAU/orginfo-harvester/internal/pipeline"
)

// harvester is the slice of *app.App the command uses. It lets tests inject
// a fake.
type harvester interface {
	Harvest(ctx context.Context) (pipeline.Result, error)
	Close(ctx context.Context)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (harvester, error) {
	return app.New(ctx, cfg, logger, app.WithPreview(os.Stdout))
}

// newHarvestCmd creates the 'harvest' subcommand.
func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Collect listing links, fetch organization pages and export the table",
		Long: `Runs the harvest state machine: load the checkpoint, collect links from
the listing pages that are still missing, fetch the organization pages that
have no record yet, then export every record to the configured workbook.`,
		RunE: runHarvestCommand,
	}

	flags := cmd.Flags()
	flags.Int("start", 0, "first listing page (harvest.start_page)")
	flags.Int("end", 0, "last listing page, inclusive (harvest.end_page)")
	flags.Int("workers", 0, "concurrent requests (harvest.workers)")
	flags.String("query", "", "search query (harvest.query)")
	flags.Duration("timeout", 0, "per-request timeout (harvest.request_timeout)")
	flags.Int("batch-size", 0, "tasks per checkpointed batch (harvest.batch_size)")
	flags.String("output", "", "workbook path (export.path)")
	flags.String("backend", "", "checkpoint backend: local, memory, gcs or postgres (checkpoint.backend)")
	return cmd
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	ctx := cmd.Context()
	h, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer h.Close(context.WithoutCancel(ctx))

	res, err := h.Harvest(ctx)
	switch {
	case errors.Is(err, pipeline.ErrInterrupted):
		logger.Warn("harvest interrupted; progress is checkpointed, rerun to resume",
			zap.Int("links", len(res.Checkpoint.Links)),
			zap.Int("records", len(res.Checkpoint.Records)),
		)
		return err
	case err != nil:
		return fmt.Errorf("harvest: %w", err)
	}

	logger.Info("harvest command finished",
		zap.String("output", cfg.Export.Path),
		zap.Int("records", len(res.Checkpoint.Records)),
	)
	return nil
}
