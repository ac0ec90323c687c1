package export

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
)

// Config controls where and how the table is written.
type Config struct {
	Path        string
	Sheet       string
	PreviewRows int
	// Preview receives the console preview; nil disables it.
	Preview io.Writer
}

// Exporter implements crawler.Exporter.
type Exporter struct {
	xlsx    XLSXWriter
	preview PreviewWriter
	logger  *zap.Logger
}

// New builds an Exporter.
func New(cfg Config, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		xlsx:    XLSXWriter{Path: cfg.Path, Sheet: cfg.Sheet},
		preview: PreviewWriter{Out: cfg.Preview, Rows: cfg.PreviewRows},
		logger:  logger,
	}
}

// Path reports the workbook location.
func (e *Exporter) Path() string {
	if e.xlsx.Path == "" {
		return DefaultPath
	}
	return e.xlsx.Path
}

// Export aggregates records and writes the workbook. A preview failure is
// logged and does not fail the export.
func (e *Exporter) Export(ctx context.Context, records []crawler.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("export canceled: %w", err)
	}
	table := Aggregate(records)
	if err := e.preview.Write(table); err != nil {
		e.logger.Warn("preview failed", zap.Error(err))
	}
	if err := e.xlsx.Write(table); err != nil {
		return fmt.Errorf("export %s: %w", e.Path(), err)
	}
	e.logger.Info("export written",
		zap.String("path", e.Path()),
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Columns)),
	)
	return nil
}
