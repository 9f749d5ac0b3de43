// internal/notify/notify.go
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers outbound alerts. Delivery is fire-and-forget:
// callers log a returned error and move on.
type Notifier interface {
	Alert(ctx context.Context, message string) error
}

// Log is the fallback notifier used when no delivery channel is
// configured. Alerts land in the structured log.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("notify")}
}

func (l *Log) Alert(_ context.Context, message string) error {
	l.logger.Info("Alert", zap.String("message", message))
	return nil
}
