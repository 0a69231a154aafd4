package reporting

import (
	"context"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"go.uber.org/zap"
)

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs through logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Report(_ context.Context, e telemetry.Event) error {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("slug", e.Slug),
		zap.String("reason", e.Reason.String()),
		zap.String("mode", e.Mode.String()),
		zap.String("session_id", e.SessionID),
		zap.Int64("timestamp", e.Timestamp),
	}
	if len(e.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", e.Metadata))
	}
	if e.Performance != nil {
		fields = append(fields, zap.Float64("load_time_ms", e.Performance.LoadTimeMs))
	}
	s.logger.Info("orchestration fallback", fields...)
	return nil
}
