// Package notify delivers operator notifications. Delivery is fire-and-forget:
// a failed notification is logged and never affects run outcome.
package notify

import "context"

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
	SeveritySuccess Severity = "SUCCESS"
)

// Notifier is the notification sink capability. Any backend satisfying it is
// substitutable.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, message string)
}

// Nop is a Notifier that discards everything.
type Nop struct{}

func (Nop) Notify(context.Context, Severity, string) {}

var _ Notifier = Nop{}
