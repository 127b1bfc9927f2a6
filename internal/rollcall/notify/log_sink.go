package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes every notification to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, n Notification) error {
	if n.Kind == KindReady {
		return nil
	}
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("subject", n.Subject),
		zap.Bool("succeeded", n.Succeeded),
		zap.Time("at", n.At),
	}
	if n.Direction != "" {
		fields = append(fields, zap.String("direction", n.Direction))
	}
	for k, v := range n.Details {
		fields = append(fields, zap.String(k, v))
	}
	s.logger.Info("notification", fields...)
	return nil
}
