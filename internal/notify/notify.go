// Package notify defines the notification collaborator contract the scheduler
// reports automation lifecycle events to. Delivery (push, email, chat) is an
// external concern; this package only carries the interface and a
// logger-backed default.
package notify

import (
	"github.com/floguru/gurucore/internal/logger"
)

// Notifier receives automation lifecycle events.
type Notifier interface {
	AutomationStarted(automationID string)
	AutomationCompleted(automationID string)
	AutomationFailed(automationID string, err error)
}

// LogNotifier writes lifecycle events to the log. It is the default when no
// delivery channel is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AutomationStarted(automationID string) {
	n.log.Info("automation started", logger.Field{Key: "automation_id", Value: automationID})
}

func (n *LogNotifier) AutomationCompleted(automationID string) {
	n.log.Info("automation completed", logger.Field{Key: "automation_id", Value: automationID})
}

func (n *LogNotifier) AutomationFailed(automationID string, err error) {
	n.log.Error("automation failed", err, logger.Field{Key: "automation_id", Value: automationID})
}
