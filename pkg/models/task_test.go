package models

import (
	"testing"
	"time"
)

func TestCloneIsDeep(t *testing.T) {
	now := time.Now().UTC()
	orig := Task{
		ID:           "t-1",
		Description:  "original",
		Status:       StatusWorking,
		Dependencies: []string{"t-0"},
		History: []HistoryEntry{
			{Timestamp: now, OldStatus: "", NewStatus: StatusUnclaimed, Actor: "creator"},
		},
		Outputs: map[string]any{"pr": 1},
		Extra:   map[string]any{"team": "infra"},
	}

	cp := orig.Clone()
	cp.Dependencies[0] = "changed"
	cp.History[0].Actor = "changed"
	cp.Outputs["pr"] = 2
	cp.Extra["team"] = "changed"

	if orig.Dependencies[0] != "t-0" {
		t.Error("clone shares the dependencies slice")
	}
	if orig.History[0].Actor != "creator" {
		t.Error("clone shares the history slice")
	}
	if orig.Outputs["pr"] != 1 {
		t.Error("clone shares the outputs map")
	}
	if orig.Extra["team"] != "infra" {
		t.Error("clone shares the extra map")
	}
}

func TestLastTransition(t *testing.T) {
	var task Task
	if task.LastTransition() != nil {
		t.Error("expected nil for empty history")
	}

	task.History = []HistoryEntry{
		{NewStatus: StatusUnclaimed},
		{OldStatus: StatusUnclaimed, NewStatus: StatusClaimed},
	}
	last := task.LastTransition()
	if last == nil || last.NewStatus != StatusClaimed {
		t.Errorf("LastTransition = %+v, want claimed entry", last)
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range AllStatuses() {
		terminal := s == StatusCompleted || s == StatusFailed
		if s.IsTerminal() != terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, s.IsTerminal(), terminal)
		}
	}
	if StatusUnclaimed.Assigned() || StatusArchived.Assigned() {
		t.Error("unclaimed and archived tasks must not be assigned")
	}
	if !StatusClaimed.Assigned() || !StatusFailed.Assigned() {
		t.Error("claimed and failed tasks must be assigned")
	}
}

func TestPriorityRankOrdering(t *testing.T) {
	prev := -1
	for _, p := range AllPriorities() {
		if p.Rank() <= prev {
			t.Errorf("Rank(%s) = %d, not increasing", p, p.Rank())
		}
		prev = p.Rank()
	}
	if Priority("bogus").Rank() <= PriorityLow.Rank() {
		t.Error("unknown priority must sort last")
	}
}
