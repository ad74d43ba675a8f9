// Package notify models the engine's outbound communication capabilities as
// abstract interfaces. Delivery (email, SMS) and text generation are supplied
// by callers; the engine never depends on a concrete provider.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers a message to a recipient. Implementations should be
// best-effort; the engine never fails a transition on notification errors.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// Responder generates text for a prompt. It models the opaque LLM-style
// capability collaborators may use to draft comments or summaries.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// LogNotifier writes notifications to the log instead of delivering them.
// Useful as a default and in tests.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a Notifier that logs instead of delivering.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notification at info level.
func (n *LogNotifier) Notify(_ context.Context, recipient, subject, body string) error {
	n.logger.Info("notification",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// Nop is a Notifier that does nothing.
type Nop struct{}

// Notify discards the notification.
func (Nop) Notify(context.Context, string, string, string) error { return nil }
