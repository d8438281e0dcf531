package notification

import (
	"context"
	"log/slog"
)

const (
	// KindMovementCompleted signals a settled fund movement.
	KindMovementCompleted = "movement_completed"
	// KindMovementFailed signals a failed settlement.
	KindMovementFailed = "movement_failed"
	// KindApprovalRequested signals a movement waiting for human sign-off.
	KindApprovalRequested = "approval_requested"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
