package observability

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/valter-silva-au/agentboard/pkg/models"
)

func newTestLog(t *testing.T) EventLog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log := newTestLog(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	events := []Event{
		{Time: now, TaskID: "task-1", OldStatus: "", NewStatus: models.StatusUnclaimed},
		{Time: now.Add(time.Second), TaskID: "task-1", OldStatus: models.StatusUnclaimed, NewStatus: models.StatusClaimed},
	}

	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result))
	}
	if result[0].NewStatus != models.StatusUnclaimed {
		t.Errorf("expected unclaimed, got %s", result[0].NewStatus)
	}
	if result[1].OldStatus != models.StatusUnclaimed || result[1].NewStatus != models.StatusClaimed {
		t.Errorf("unexpected second event: %+v", result[1])
	}
}

func TestEventLog_FilterByTaskAndStatus(t *testing.T) {
	log := newTestLog(t)

	now := time.Now().UTC()
	events := []Event{
		{Time: now, TaskID: "task-1", NewStatus: models.StatusUnclaimed},
		{Time: now.Add(time.Second), TaskID: "task-2", NewStatus: models.StatusUnclaimed},
		{Time: now.Add(2 * time.Second), TaskID: "task-1", NewStatus: models.StatusClaimed},
	}
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	result, err := log.Read(EventFilter{TaskID: "task-1"})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("task filter returned %d events, want 2", len(result))
	}

	result, err = log.Read(EventFilter{Status: models.StatusClaimed})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 1 || result[0].TaskID != "task-1" {
		t.Errorf("status filter = %+v, want one claimed event for task-1", result)
	}
}

func TestEventLog_FilterByTimeWindow(t *testing.T) {
	log := newTestLog(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		e := Event{Time: base.Add(time.Duration(i) * time.Minute), TaskID: "task-1", NewStatus: models.StatusWorking}
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	since := base.Add(time.Minute)
	until := base.Add(3 * time.Minute)
	result, err := log.Read(EventFilter{Since: &since, Until: &until})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 3 {
		t.Errorf("window returned %d events, want 3", len(result))
	}
}

func TestEventLog_ReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("closing event log: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("removing log file: %v", err)
	}

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading missing log: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil events, got %v", result)
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	if err := log.Write(Event{Time: time.Now().UTC(), TaskID: "task-1", NewStatus: models.StatusUnclaimed}); err != nil {
		t.Fatalf("writing event: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("opening log for corruption: %v", err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatalf("appending garbage: %v", err)
	}
	_ = f.Close()

	if err := log.Write(Event{Time: time.Now().UTC(), TaskID: "task-2", NewStatus: models.StatusUnclaimed}); err != nil {
		t.Fatalf("writing after garbage: %v", err)
	}

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("expected 2 well-formed events, got %d", len(result))
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log := newTestLog(t)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := Event{Time: time.Now().UTC(), TaskID: "task-1", NewStatus: models.StatusWorking}
			if err := log.Write(e); err != nil {
				t.Errorf("writer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != writers {
		t.Errorf("expected %d events, got %d", writers, len(result))
	}
}
