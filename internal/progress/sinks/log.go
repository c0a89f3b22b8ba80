package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/progress"
)

// LogSink writes each event as a structured log line.
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

// Consume logs entity transitions at debug level and run milestones at info.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("kind", string(evt.Kind)),
		}
		if evt.Entity != "" {
			fields = append(fields, zap.String("entity", evt.Entity), zap.Int("position", evt.Position))
		}
		if evt.State != "" {
			fields = append(fields, zap.String("state", string(evt.State)))
		}
		if evt.Stage != "" {
			fields = append(fields, zap.String("stage", string(evt.Stage)))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Kind {
		case progress.KindEntityState, progress.KindCheckpoint:
			s.logger.Debug("progress event", fields...)
		case progress.KindStageFailed, progress.KindRunError:
			s.logger.Warn("progress event", fields...)
		default:
			fields = append(fields,
				zap.Int("catalog_size", evt.CatalogSize),
				zap.Int("recorded", evt.Recorded),
				zap.Duration("dur", evt.Dur),
			)
			s.logger.Info("progress event", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
