package models

import "time"

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

const (
	StatusUnclaimed     TaskStatus = "unclaimed"
	StatusClaimed       TaskStatus = "claimed"
	StatusWorking       TaskStatus = "working"
	StatusBlocked       TaskStatus = "blocked"
	StatusPendingReview TaskStatus = "completed_pending_review"
	StatusCompleted     TaskStatus = "completed"
	StatusFailed        TaskStatus = "failed"
	StatusArchived      TaskStatus = "archived"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status is eligible for archiving.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Assigned reports whether a task in this status carries an assigned agent.
func (s TaskStatus) Assigned() bool {
	switch s {
	case StatusClaimed, StatusWorking, StatusBlocked, StatusPendingReview, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// AllStatuses lists every legal task status value.
func AllStatuses() []TaskStatus {
	return []TaskStatus{
		StatusUnclaimed, StatusClaimed, StatusWorking, StatusBlocked,
		StatusPendingReview, StatusCompleted, StatusFailed, StatusArchived,
	}
}

// Priority represents the urgency level of a task. It is a tie-break hint
// for claim ordering, never enforced by the coordinator.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Rank returns the sort rank of the priority; lower sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// AllPriorities lists every legal priority value, highest first.
func AllPriorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}
}

// HistoryEntry records one status transition of a task. History is
// append-only: entries are never rewritten, only added.
type HistoryEntry struct {
	Timestamp time.Time  `yaml:"timestamp" json:"timestamp"`
	OldStatus TaskStatus `yaml:"old_status" json:"old_status"`
	NewStatus TaskStatus `yaml:"new_status" json:"new_status"`
	Actor     string     `yaml:"actor" json:"actor"`
	Note      string     `yaml:"note,omitempty" json:"note,omitempty"`
}

// Task represents a discrete unit of work that agents claim, execute,
// and complete. A task lives in exactly one board at a time; which board
// is a pure function of its status.
type Task struct {
	ID            string         `yaml:"task_id" json:"task_id"`
	Description   string         `yaml:"description" json:"description"`
	Status        TaskStatus     `yaml:"status" json:"status"`
	AssignedAgent string         `yaml:"assigned_agent_id,omitempty" json:"assigned_agent_id,omitempty"`
	Dependencies  []string       `yaml:"dependencies" json:"dependencies"`
	Priority      Priority       `yaml:"priority" json:"priority"`
	History       []HistoryEntry `yaml:"history" json:"history"`
	Created       time.Time      `yaml:"created_at" json:"created_at"`
	Updated       time.Time      `yaml:"updated_at" json:"updated_at"`
	Summary       string         `yaml:"summary,omitempty" json:"summary,omitempty"`
	Outputs       map[string]any `yaml:"outputs,omitempty" json:"outputs,omitempty"`

	// Extra holds collaborator-owned fields not known to this schema.
	// They round-trip through the board artifact untouched.
	Extra map[string]any `yaml:",inline" json:"-"`
}

// Clone returns a copy of the task safe to hand to callers: slices and
// maps are copied so mutations on the copy never reach the stored record.
func (t Task) Clone() Task {
	cp := t
	if t.Dependencies != nil {
		cp.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.History != nil {
		cp.History = append([]HistoryEntry(nil), t.History...)
	}
	if t.Outputs != nil {
		cp.Outputs = make(map[string]any, len(t.Outputs))
		for k, v := range t.Outputs {
			cp.Outputs[k] = v
		}
	}
	if t.Extra != nil {
		cp.Extra = make(map[string]any, len(t.Extra))
		for k, v := range t.Extra {
			cp.Extra[k] = v
		}
	}
	return cp
}

// LastTransition returns the most recent history entry, or nil if the
// task has never transitioned.
func (t Task) LastTransition() *HistoryEntry {
	if len(t.History) == 0 {
		return nil
	}
	return &t.History[len(t.History)-1]
}
