package observability

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/valter-silva-au/agentboard/pkg/models"
)

func TestMetricsCalculator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	eventLog, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer eventLog.Close()

	base := time.Now().UTC().Add(-time.Hour)
	seed := []Event{
		{Time: base, TaskID: "task-1", OldStatus: "", NewStatus: models.StatusUnclaimed},
		{Time: base.Add(time.Minute), TaskID: "task-1", OldStatus: models.StatusUnclaimed, NewStatus: models.StatusClaimed},
		{Time: base.Add(2 * time.Minute), TaskID: "task-1", OldStatus: models.StatusClaimed, NewStatus: models.StatusWorking},
		{Time: base.Add(3 * time.Minute), TaskID: "task-1", OldStatus: models.StatusPendingReview, NewStatus: models.StatusCompleted},
		{Time: base.Add(4 * time.Minute), TaskID: "task-1", OldStatus: models.StatusCompleted, NewStatus: models.StatusArchived},
		{Time: base.Add(5 * time.Minute), TaskID: "task-2", OldStatus: "", NewStatus: models.StatusUnclaimed},
		{Time: base.Add(6 * time.Minute), TaskID: "task-2", OldStatus: models.StatusUnclaimed, NewStatus: models.StatusFailed},
	}
	for _, e := range seed {
		if err := eventLog.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	m, err := NewMetricsCalculator(eventLog).Calculate(base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if m.TasksCreated != 2 {
		t.Errorf("TasksCreated = %d, want 2", m.TasksCreated)
	}
	if m.TasksClaimed != 1 {
		t.Errorf("TasksClaimed = %d, want 1", m.TasksClaimed)
	}
	if m.TasksCompleted != 1 {
		t.Errorf("TasksCompleted = %d, want 1", m.TasksCompleted)
	}
	if m.TasksFailed != 1 {
		t.Errorf("TasksFailed = %d, want 1", m.TasksFailed)
	}
	if m.TasksArchived != 1 {
		t.Errorf("TasksArchived = %d, want 1", m.TasksArchived)
	}
	if m.EventCount != len(seed) {
		t.Errorf("EventCount = %d, want %d", m.EventCount, len(seed))
	}
	if m.ByStatus[string(models.StatusWorking)] != 1 {
		t.Errorf("ByStatus[working] = %d, want 1", m.ByStatus[string(models.StatusWorking)])
	}
	if m.OldestEvent == nil || m.NewestEvent == nil {
		t.Fatal("expected oldest and newest event times")
	}
	if !m.NewestEvent.After(*m.OldestEvent) {
		t.Errorf("newest %v not after oldest %v", m.NewestEvent, m.OldestEvent)
	}
}

func TestMetricsCalculatorSinceCutoff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	eventLog, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer eventLog.Close()

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)
	seed := []Event{
		{Time: old, TaskID: "task-old", OldStatus: "", NewStatus: models.StatusUnclaimed},
		{Time: recent, TaskID: "task-new", OldStatus: "", NewStatus: models.StatusUnclaimed},
	}
	for _, e := range seed {
		if err := eventLog.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	m, err := NewMetricsCalculator(eventLog).Calculate(time.Now().UTC().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if m.TasksCreated != 1 {
		t.Errorf("TasksCreated = %d, want 1 (old event excluded)", m.TasksCreated)
	}
}
