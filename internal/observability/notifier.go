package observability

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/valter-silva-au/agentboard/pkg/models"
)

// LogNotifier persists every transition it receives to an EventLog.
// Write failures are logged and swallowed: a broken event log must not
// fail the mutation that already persisted.
type LogNotifier struct {
	eventLog EventLog
	logger   *log.Logger
}

// NewLogNotifier creates a notifier backed by the given event log.
func NewLogNotifier(eventLog EventLog, logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{eventLog: eventLog, logger: logger}
}

func (n *LogNotifier) OnTransition(taskID string, oldStatus, newStatus models.TaskStatus, at time.Time) {
	err := n.eventLog.Write(Event{
		Time:      at,
		TaskID:    taskID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
	if err != nil {
		n.logger.Error("recording transition event",
			"task_id", taskID, "new_status", newStatus, "err", err)
	}
}

// ConsoleNotifier announces transitions on the structured logger.
type ConsoleNotifier struct {
	logger *log.Logger
}

// NewConsoleNotifier creates a notifier that logs each transition.
func NewConsoleNotifier(logger *log.Logger) *ConsoleNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &ConsoleNotifier{logger: logger}
}

func (n *ConsoleNotifier) OnTransition(taskID string, oldStatus, newStatus models.TaskStatus, at time.Time) {
	n.logger.Info("task transition",
		"task_id", taskID,
		"old_status", string(oldStatus),
		"new_status", string(newStatus),
		"at", at.Format(time.RFC3339),
	)
}

// TransitionSink is anything that can receive a lifecycle transition.
type TransitionSink interface {
	OnTransition(taskID string, oldStatus, newStatus models.TaskStatus, at time.Time)
}

// MultiNotifier fans a transition out to several sinks in order.
type MultiNotifier struct {
	notifiers []TransitionSink
}

// NewMultiNotifier composes sinks; each receives every transition.
func NewMultiNotifier(notifiers ...TransitionSink) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (n *MultiNotifier) OnTransition(taskID string, oldStatus, newStatus models.TaskStatus, at time.Time) {
	for _, sub := range n.notifiers {
		sub.OnTransition(taskID, oldStatus, newStatus, at)
	}
}
