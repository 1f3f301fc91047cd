package observability

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/agentboard/pkg/models"
)

// Metrics holds throughput figures derived from the transition log.
type Metrics struct {
	TasksCreated   int            `json:"tasks_created"`
	TasksClaimed   int            `json:"tasks_claimed"`
	TasksCompleted int            `json:"tasks_completed"`
	TasksFailed    int            `json:"tasks_failed"`
	TasksArchived  int            `json:"tasks_archived"`
	ByStatus       map[string]int `json:"transitions_by_status"`
	EventCount     int            `json:"event_count"`
	OldestEvent    *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent    *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		ByStatus: make(map[string]int),
	}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		m.ByStatus[string(event.NewStatus)]++

		switch event.NewStatus {
		case models.StatusUnclaimed:
			if event.OldStatus == "" {
				m.TasksCreated++
			}
		case models.StatusClaimed:
			m.TasksClaimed++
		case models.StatusCompleted:
			m.TasksCompleted++
		case models.StatusFailed:
			m.TasksFailed++
		case models.StatusArchived:
			m.TasksArchived++
		}
	}

	return m, nil
}
