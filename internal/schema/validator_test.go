package schema

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/agentboard/pkg/models"
)

func validTask(id string) models.Task {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.Task{
		ID:           id,
		Description:  "do the thing " + id,
		Status:       models.StatusUnclaimed,
		Dependencies: []string{},
		Priority:     models.PriorityNormal,
		History: []models.HistoryEntry{
			{Timestamp: now, OldStatus: "", NewStatus: models.StatusUnclaimed, Actor: "creator"},
		},
		Created: now,
		Updated: now,
	}
}

func indexOf(tasks ...models.Task) map[string]models.Task {
	idx := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		idx[t.ID] = t
	}
	return idx
}

func TestValidateRecord_Valid(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateRecord(validTask("T1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRecord_MissingFields(t *testing.T) {
	v := NewValidator()

	task := validTask("T1")
	task.Description = ""
	err := v.ValidateRecord(task)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "T1") {
		t.Fatalf("error should carry the task id, got %q", err)
	}
}

func TestValidateRecord_BadStatus(t *testing.T) {
	v := NewValidator()

	task := validTask("T1")
	task.Status = "half-done"
	task.History = nil
	if err := v.ValidateRecord(task); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
}

func TestValidateRecord_BadPriority(t *testing.T) {
	v := NewValidator()

	task := validTask("T1")
	task.Priority = "urgent"
	if err := v.ValidateRecord(task); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown priority, got %v", err)
	}
}

func TestValidateRecord_AgentAssignmentMatchesStatus(t *testing.T) {
	v := NewValidator()

	// Claimed without an agent.
	task := validTask("T1")
	task.Status = models.StatusClaimed
	task.History = append(task.History, models.HistoryEntry{
		Timestamp: task.Updated, OldStatus: models.StatusUnclaimed,
		NewStatus: models.StatusClaimed, Actor: "agent-a",
	})
	if err := v.ValidateRecord(task); !errors.Is(err, ErrValidation) {
		t.Fatalf("claimed task without agent must fail, got %v", err)
	}

	// Unclaimed with an agent.
	task = validTask("T2")
	task.AssignedAgent = "agent-a"
	if err := v.ValidateRecord(task); !errors.Is(err, ErrValidation) {
		t.Fatalf("unclaimed task with agent must fail, got %v", err)
	}
}

func TestValidateRecord_HistoryTailMatchesStatus(t *testing.T) {
	v := NewValidator()

	task := validTask("T1")
	task.History[len(task.History)-1].NewStatus = models.StatusClaimed
	if err := v.ValidateRecord(task); !errors.Is(err, ErrValidation) {
		t.Fatalf("history tail mismatch must fail, got %v", err)
	}
}

func TestValidateRecord_UpdatedBeforeCreated(t *testing.T) {
	v := NewValidator()

	task := validTask("T1")
	task.Updated = task.Created.Add(-time.Hour)
	if err := v.ValidateRecord(task); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for reversed timestamps, got %v", err)
	}
}

func TestValidateRecord_ExtraFieldsAllowed(t *testing.T) {
	v := NewValidator()

	task := validTask("T1")
	task.Extra = map[string]any{"collaborator_hint": "anything"}
	if err := v.ValidateRecord(task); err != nil {
		t.Fatalf("extra fields must be permitted, got %v", err)
	}
}

func TestCheckNew_Duplicate(t *testing.T) {
	v := NewValidator()

	existing := indexOf(validTask("T1"))
	err := v.CheckNew(validTask("T1"), existing)
	if !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestCheckNew_ForwardReferenceRejected(t *testing.T) {
	v := NewValidator()

	task := validTask("T2")
	task.Dependencies = []string{"T1"}
	err := v.CheckNew(task, indexOf())
	if !errors.Is(err, ErrDependencyUnresolved) {
		t.Fatalf("expected ErrDependencyUnresolved for forward reference, got %v", err)
	}
}

func TestCheckNew_ResolvedDependency(t *testing.T) {
	v := NewValidator()

	dep := validTask("T1")
	task := validTask("T2")
	task.Dependencies = []string{"T1"}
	if err := v.CheckNew(task, indexOf(dep)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckNew_SelfDependency(t *testing.T) {
	v := NewValidator()

	task := validTask("T1")
	task.Dependencies = []string{"T1"}
	err := v.CheckNew(task, indexOf())
	if !errors.Is(err, ErrDependencyUnresolved) {
		t.Fatalf("expected cycle rejection, got %v", err)
	}
}

func TestCheckUpdate_TransitiveCycle(t *testing.T) {
	v := NewValidator()

	a := validTask("A")
	b := validTask("B")
	b.Dependencies = []string{"A"}
	c := validTask("C")
	c.Dependencies = []string{"B"}

	// Closing the loop: A would now depend on C.
	patched := a
	patched.Dependencies = []string{"C"}

	err := v.CheckUpdate(patched, indexOf(a, b, c))
	if !errors.Is(err, ErrDependencyUnresolved) {
		t.Fatalf("expected transitive cycle rejection, got %v", err)
	}
	if !strings.Contains(err.Error(), "->") {
		t.Fatalf("cycle error should show the path, got %q", err)
	}
}

func TestCheckUpdate_AcyclicChainAccepted(t *testing.T) {
	v := NewValidator()

	a := validTask("A")
	b := validTask("B")
	b.Dependencies = []string{"A"}

	patched := validTask("C")
	patched.Dependencies = []string{"A", "B"}
	if err := v.CheckNew(patched, indexOf(a, b)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
