package tokens

import (
	"context"
	"time"
)

// Notification is the delivery payload handed to the Notifier when a token
// is issued.
type Notification struct {
	Address   string
	Subject   string
	Body      string
	Token     string
	Purpose   Purpose
	ExpiresAt time.Time
}

// Notifier delivers issued tokens to their subjects. A failure is a
// retryable delivery fault, never a token-issuance fault: the lifecycle
// engine keeps the record and surfaces ErrDeliveryFailed.
type Notifier interface {
	Deliver(ctx context.Context, notification Notification) error
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(ctx context.Context, notification Notification) error

// Deliver satisfies the Notifier interface.
func (f NotifierFunc) Deliver(ctx context.Context, notification Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, notification)
}

// LogNotifier writes deliveries to the logger instead of sending them.
// Useful for development and tests.
type LogNotifier struct {
	logger Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger Logger) *LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogNotifier{logger: logger}
}

// Deliver satisfies the Notifier interface.
func (n *LogNotifier) Deliver(_ context.Context, notification Notification) error {
	n.logger.Info(
		"token notification to=%s purpose=%s expires=%s token=%s",
		notification.Address,
		notification.Purpose,
		notification.ExpiresAt.Format(time.RFC3339),
		notification.Token,
	)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Deliver(context.Context, Notification) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
