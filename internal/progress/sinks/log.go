package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/orginfo-harvester/internal/progress"
)

// LogSink turns progress events into structured log lines. Per-task and
// per-fetch events are logged at debug level; run, phase, and checkpoint
// milestones at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.Phase != "" {
			fields = append(fields, zap.String("phase", string(evt.Phase)))
		}
		switch evt.Stage {
		case progress.StageTaskDone:
			s.logger.Debug("task completed", append(fields,
				zap.Int("completed", evt.Completed),
				zap.Int("total", evt.Total),
			)...)
		case progress.StageFetchDone:
			s.logger.Debug("fetch completed", append(fields,
				zap.String("url", evt.URL),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Int64("bytes", evt.Bytes),
				zap.Duration("dur", evt.Dur),
				zap.String("note", evt.Note),
			)...)
		case progress.StageCheckpoint:
			s.logger.Info("checkpoint saved", append(fields,
				zap.Int("links", evt.Total),
				zap.Int("records", evt.Completed),
			)...)
		default:
			s.logger.Info("progress event", append(fields,
				zap.Int("completed", evt.Completed),
				zap.Int("total", evt.Total),
				zap.Duration("dur", evt.Dur),
				zap.String("note", evt.Note),
			)...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
