package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/scdx/internal/progress"
)

// LogSink emits structured logs for every progress event.
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
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.String("domain", evt.Domain),
			zap.Int("done", evt.Done),
			zap.Int("total", evt.Total),
		}
		if evt.Crawl != "" {
			fields = append(fields, zap.String("crawl", evt.Crawl))
		}
		if evt.StatusCode != 0 {
			fields = append(fields,
				zap.Int("status", evt.StatusCode),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Int("attempt", evt.Attempt),
			)
		}
		if evt.Records > 0 {
			fields = append(fields, zap.Int64("records", evt.Records), zap.Int64("bytes", evt.Bytes))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Log(levelFor(evt.Stage), "progress event", fields...)
	}
	return nil
}

func levelFor(stage progress.Stage) zapcore.Level {
	switch stage {
	case progress.StageCrawlStart:
		return zapcore.DebugLevel
	case progress.StageCrawlRetry:
		return zapcore.WarnLevel
	case progress.StageRunError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
