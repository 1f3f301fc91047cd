package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/agentboard/internal/lock"
	"github.com/valter-silva-au/agentboard/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	locks := lock.NewManager(dir, "store-test", lock.WithRetryDelay(time.Millisecond))
	return New(dir, locks, time.Second)
}

func sampleTask(id string) models.Task {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return models.Task{
		ID:           id,
		Description:  "sample " + id,
		Status:       models.StatusUnclaimed,
		Dependencies: []string{},
		Priority:     models.PriorityNormal,
		History: []models.HistoryEntry{
			{Timestamp: now, NewStatus: models.StatusUnclaimed, Actor: "creator"},
		},
		Created: now,
		Updated: now,
	}
}

func TestLoadMissingBoardIsEmpty(t *testing.T) {
	s := newTestStore(t)

	b, err := s.Load(BoardBacklog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Tasks) != 0 {
		t.Fatalf("expected empty board, got %d tasks", len(b.Tasks))
	}
	if b.Version != models.BoardVersion {
		t.Fatalf("expected version %q, got %q", models.BoardVersion, b.Version)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	b := models.NewBoard(BoardBacklog)
	task := sampleTask("T1")
	task.Outputs = map[string]any{"report": "r.md"}
	task.Extra = map[string]any{"collaborator_field": "kept"}
	b.Append(task)
	b.Append(sampleTask("T2"))

	if err := s.Save(BoardBacklog, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Load(BoardBacklog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(got.Tasks))
	}
	if got.Tasks[0].ID != "T1" || got.Tasks[1].ID != "T2" {
		t.Fatal("task order must survive the round trip")
	}
	if got.Tasks[0].Extra["collaborator_field"] != "kept" {
		t.Fatal("unknown fields must round-trip through the artifact")
	}
}

func TestLoadCorruptBoard(t *testing.T) {
	s := newTestStore(t)

	path := filepath.Join(s.Dir(), "backlog.yaml")
	if err := os.WriteFile(path, []byte("{{{ not yaml"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := s.Load(BoardBacklog)
	if !errors.Is(err, ErrCorruption) {
		t.Fatalf("expected ErrCorruption, got %v", err)
	}
}

func TestLoadMissingVersionHeader(t *testing.T) {
	s := newTestStore(t)

	// Parseable YAML that is not a board artifact.
	path := filepath.Join(s.Dir(), "backlog.yaml")
	if err := os.WriteFile(path, []byte("tasks: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := s.Load(BoardBacklog)
	if !errors.Is(err, ErrCorruption) {
		t.Fatalf("expected ErrCorruption for missing version, got %v", err)
	}
}

func TestKilledMidSaveLeavesPreviousVersion(t *testing.T) {
	s := newTestStore(t)

	b := models.NewBoard(BoardBacklog)
	b.Append(sampleTask("T1"))
	if err := s.Save(BoardBacklog, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A process killed mid-save leaves only an orphaned temp file; the
	// rename never happened.
	orphan := filepath.Join(s.Dir(), "backlog-orphan.yaml.tmp")
	if err := os.WriteFile(orphan, []byte("version: \"1.0\"\ntasks:\n  - task_id: HALF"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(BoardBacklog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "T1" {
		t.Fatal("reader must observe the pre-write content")
	}
}

func TestUpdateRelocation(t *testing.T) {
	s := newTestStore(t)

	b := models.NewBoard(BoardBacklog)
	b.Append(sampleTask("T1"))
	if err := s.Save(BoardBacklog, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.Update([]string{BoardBacklog, BoardWorking}, func(snaps map[string]*models.Board) ([]string, error) {
		task := snaps[BoardBacklog].Find("T1")
		if task == nil {
			return nil, errors.New("T1 missing from backlog")
		}
		moved := task.Clone()
		snaps[BoardWorking].Append(moved)
		snaps[BoardBacklog].Remove("T1")
		return []string{BoardWorking, BoardBacklog}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	backlog, _ := s.Load(BoardBacklog)
	working, _ := s.Load(BoardWorking)
	if len(backlog.Tasks) != 0 {
		t.Fatal("task should be gone from backlog")
	}
	if len(working.Tasks) != 1 || working.Tasks[0].ID != "T1" {
		t.Fatal("task should be on the working board")
	}
}

func TestUpdateErrorDiscardsChanges(t *testing.T) {
	s := newTestStore(t)

	b := models.NewBoard(BoardBacklog)
	b.Append(sampleTask("T1"))
	if err := s.Save(BoardBacklog, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantErr := errors.New("abort")
	err := s.Update([]string{BoardBacklog}, func(snaps map[string]*models.Board) ([]string, error) {
		snaps[BoardBacklog].Remove("T1")
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error surfaced, got %v", err)
	}

	got, _ := s.Load(BoardBacklog)
	if len(got.Tasks) != 1 {
		t.Fatal("failed update must leave the artifact untouched")
	}
}

func TestUpdateReleasesLocksOnError(t *testing.T) {
	s := newTestStore(t)

	_ = s.Update([]string{BoardBacklog}, func(snaps map[string]*models.Board) ([]string, error) {
		return nil, errors.New("boom")
	})

	// If the lock leaked, a fresh update would time out.
	err := s.Update([]string{BoardBacklog}, func(snaps map[string]*models.Board) ([]string, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("locks must be released after a failed update: %v", err)
	}
}

func TestUpdateRejectsSavingUnlockedBoard(t *testing.T) {
	s := newTestStore(t)

	err := s.Update([]string{BoardBacklog}, func(snaps map[string]*models.Board) ([]string, error) {
		return []string{BoardWorking}, nil
	})
	if err == nil || !strings.Contains(err.Error(), "critical section") {
		t.Fatalf("expected rejection of out-of-section save, got %v", err)
	}
}

func TestUpdateSurfacesLockTimeout(t *testing.T) {
	s := newTestStore(t)

	held := lock.NewManager(s.Dir(), "other-process", lock.WithRetryDelay(time.Millisecond))
	tok, err := held.Acquire(BoardBacklog, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = held.Release(tok) }()

	fast := New(s.Dir(), lock.NewManager(s.Dir(), "me", lock.WithRetryDelay(time.Millisecond)), 30*time.Millisecond)
	err = fast.Update([]string{BoardBacklog}, func(snaps map[string]*models.Board) ([]string, error) {
		return nil, nil
	})
	if !errors.Is(err, lock.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}
