package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-aggregator/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. It is useful
// during development or when no durable store is configured.
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
			zap.String("search_id", evt.SearchUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.Duration("dur", evt.Dur),
		}
		switch evt.Stage {
		case progress.StageSearchStart:
			fields = append(fields,
				zap.String("query", evt.Query),
				zap.String("location", evt.Location),
				zap.Bool("remote", evt.Remote),
				zap.Int("max_results", evt.MaxResults),
				zap.Bool("scraping", evt.Scraping),
			)
		case progress.StageSourceDone:
			fields = append(fields,
				zap.String("source", evt.Source),
				zap.String("phase", evt.Phase),
				zap.String("outcome", string(evt.Outcome)),
				zap.Int("count", evt.Count),
			)
		default:
			fields = append(fields, zap.Int("count", evt.Count))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
