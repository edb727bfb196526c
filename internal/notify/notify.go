// Package notify delivers best-effort operational notifications. Every sink
// swallows its own delivery errors: they are logged and counted, never
// returned to the pipeline.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/mailproxy/internal/intake"
	"github.com/JakeFAU/mailproxy/internal/metrics"
)

// Noop drops every event. It is used when no channel is configured.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(_ context.Context, evt intake.NotificationEvent) {
	metrics.ObserveNotification(string(evt.Kind), metrics.ResultSkipped)
}

// Log writes events to a zap logger only.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a Log sink.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Notify logs the event at info (success) or warn (error).
func (l *Log) Notify(_ context.Context, evt intake.NotificationEvent) {
	fields := []zap.Field{zap.String("kind", string(evt.Kind)), zap.String("stage", evt.Stage)}
	if evt.Kind == intake.EventError {
		l.logger.Warn(evt.Message, fields...)
	} else {
		l.logger.Info(evt.Message, fields...)
	}
	metrics.ObserveNotification(string(evt.Kind), metrics.ResultDelivered)
}
