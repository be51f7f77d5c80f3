package events

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes every message to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs the sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Handle implements Sink.
func (s *LogSink) Handle(_ context.Context, msg Message) error {
	s.logger.Info("domain event",
		zap.String("event_id", msg.ID),
		zap.String("type", msg.Type),
		zap.String("key", msg.Key),
		zap.Any("payload", msg.Payload),
	)
	return nil
}
