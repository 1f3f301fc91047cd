// Package core implements the task lifecycle coordinator: the only
// surface callers mutate boards through. Every operation runs inside a
// single lock-protected critical section over the boards it touches and
// reports each persisted transition to the configured notifier before
// returning.
package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valter-silva-au/agentboard/internal/schema"
	"github.com/valter-silva-au/agentboard/internal/store"
	"github.com/valter-silva-au/agentboard/pkg/models"
)

// BoardStore is the subset of store.Store the coordinator needs.
type BoardStore interface {
	Load(board string) (*models.Board, error)
	Update(boards []string, fn func(snaps map[string]*models.Board) ([]string, error)) error
}

// RecordValidator is the subset of schema.Validator the coordinator needs.
type RecordValidator interface {
	ValidateRecord(task models.Task) error
	CheckNew(task models.Task, existing map[string]models.Task) error
	CheckUpdate(task models.Task, existing map[string]models.Task) error
}

// TransitionNotifier receives every successful persisted transition,
// synchronously, before the coordinator call that caused it returns.
// Delivery guarantees beyond that are the consumer's concern.
type TransitionNotifier interface {
	OnTransition(taskID string, oldStatus, newStatus models.TaskStatus, at time.Time)
}

// Filter narrows ListAvailable results.
type Filter struct {
	Priorities []models.Priority
	Limit      int
}

// Patch describes an owner-driven update to a working-board task.
// Nil pointer fields are left unchanged.
type Patch struct {
	Description  *string
	Priority     *models.Priority
	Status       *models.TaskStatus
	Dependencies []string
	Note         string
	Extra        map[string]any
}

// Coordinator defines the task lifecycle operations.
type Coordinator interface {
	AddTask(record models.Task, actor string) (*models.Task, error)
	ListAvailable(filter Filter) ([]models.Task, error)
	ClaimTask(taskID, agentID string) (*models.Task, error)
	UpdateTask(taskID, agentID string, patch Patch) (*models.Task, error)
	CompleteTask(taskID, agentID, summary string, outputs map[string]any) (*models.Task, error)
	FailTask(taskID, actor, reason string) (*models.Task, error)
	ApproveTask(taskID, reviewer string) (*models.Task, error)
	ArchiveTask(taskID, actor string) error
	GetTask(taskID string) (*models.Task, string, error)
	Boards() (map[string]*models.Board, error)
	Reconcile() ([]ReconcileAction, error)
	Revalidate(board string) error
}

// coordinator implements Coordinator over a BoardStore and a validator.
type coordinator struct {
	store     BoardStore
	validator RecordValidator
	notifier  TransitionNotifier

	mu         sync.Mutex
	quarantine map[string]error // board -> load failure that triggered it
}

// CoordinatorOption configures the coordinator.
type CoordinatorOption func(*coordinator)

// WithNotifier sets the transition notifier. Without one, transitions
// are persisted but not announced.
func WithNotifier(n TransitionNotifier) CoordinatorOption {
	return func(c *coordinator) { c.notifier = n }
}

// NewCoordinator creates a Coordinator with all dependencies injected.
func NewCoordinator(st BoardStore, validator RecordValidator, opts ...CoordinatorOption) Coordinator {
	c := &coordinator{
		store:      st,
		validator:  validator,
		quarantine: make(map[string]error),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// transition is an in-flight notification, fired after persistence.
type transition struct {
	taskID string
	old    models.TaskStatus
	new    models.TaskStatus
	at     time.Time
}

// AddTask validates and inserts a new record into the backlog board with
// status unclaimed. The record's ID is kept when supplied and generated
// otherwise. Duplicate IDs, unresolved forward references, and
// dependency cycles are rejected.
func (c *coordinator) AddTask(record models.Task, actor string) (*models.Task, error) {
	now := time.Now().UTC()
	task := record.Clone()
	if task.ID == "" {
		task.ID = "task-" + uuid.NewString()
	}
	if task.Priority == "" {
		task.Priority = models.PriorityNormal
	}
	if task.Dependencies == nil {
		task.Dependencies = []string{}
	}
	if actor == "" {
		actor = "system"
	}
	task.Status = models.StatusUnclaimed
	task.AssignedAgent = ""
	task.Created = now
	task.Updated = now
	task.History = []models.HistoryEntry{{
		Timestamp: now,
		OldStatus: "",
		NewStatus: models.StatusUnclaimed,
		Actor:     actor,
		Note:      "created",
	}}

	boards := []string{store.BoardBacklog, store.BoardWorking, store.BoardArchive}
	err := c.runUpdate(boards, func(snaps map[string]*models.Board) ([]string, error) {
		if err := c.validator.ValidateRecord(task); err != nil {
			return nil, err
		}
		if err := c.validator.CheckNew(task, indexBoards(snaps)); err != nil {
			return nil, err
		}
		snaps[store.BoardBacklog].Append(task)
		return []string{store.BoardBacklog}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("adding task %s: %w", task.ID, err)
	}

	c.fire(transition{task.ID, "", models.StatusUnclaimed, now})
	result := task.Clone()
	return &result, nil
}

// ListAvailable returns unclaimed tasks whose dependencies are all
// completed, ordered by priority then creation time. The read is a
// lock-free snapshot: results are advisory and a subsequent claim must
// still win the lock.
func (c *coordinator) ListAvailable(filter Filter) ([]models.Task, error) {
	snaps, err := c.loadAll()
	if err != nil {
		return nil, fmt.Errorf("listing available tasks: %w", err)
	}
	index := indexBoards(snaps)

	var out []models.Task
	for _, t := range snaps[store.BoardBacklog].Tasks {
		if t.Status != models.StatusUnclaimed {
			continue
		}
		if !dependenciesSatisfied(t, index) {
			continue
		}
		if !filter.matchesPriority(t.Priority) {
			continue
		}
		out = append(out, t.Clone())
	}

	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f Filter) matchesPriority(p models.Priority) bool {
	if len(f.Priorities) == 0 {
		return true
	}
	for _, want := range f.Priorities {
		if want == p {
			return true
		}
	}
	return false
}

// ClaimTask exclusively assigns an unclaimed task to agentID and
// relocates it to the working board. Among concurrent claims for the
// same task exactly one wins; the rest observe the post-claim state
// inside the lock and fail with ErrAlreadyClaimed.
func (c *coordinator) ClaimTask(taskID, agentID string) (*models.Task, error) {
	if agentID == "" {
		return nil, fmt.Errorf("claiming task %s: agent id must not be empty", taskID)
	}

	// Archived dependencies cannot change anymore; an advisory read
	// outside the backlog/working critical section is sound.
	archive, err := c.store.Load(store.BoardArchive)
	if err != nil {
		return nil, fmt.Errorf("claiming task %s: %w", taskID, err)
	}

	var claimed models.Task
	var ev transition
	boards := []string{store.BoardBacklog, store.BoardWorking}
	err = c.runUpdate(boards, func(snaps map[string]*models.Board) ([]string, error) {
		backlog := snaps[store.BoardBacklog]
		working := snaps[store.BoardWorking]

		task := backlog.Find(taskID)
		if task == nil {
			// Re-check inside the lock: a concurrent claim already
			// relocated the task.
			if winner := working.Find(taskID); winner != nil {
				return nil, fmt.Errorf("task %s: %w by %s", taskID, ErrAlreadyClaimed, winner.AssignedAgent)
			}
			return nil, fmt.Errorf("task %s: %w in backlog", taskID, ErrNotFound)
		}
		if task.Status != models.StatusUnclaimed {
			return nil, fmt.Errorf("task %s: %w (status %s)", taskID, ErrAlreadyClaimed, task.Status)
		}

		index := indexBoards(snaps)
		for id, t := range indexBoard(archive) {
			index[id] = t
		}
		if !dependenciesSatisfied(*task, index) {
			return nil, fmt.Errorf("task %s: %w: dependencies not completed", taskID, schema.ErrDependencyUnresolved)
		}

		now := monotonicNow(task.Updated)
		moved := task.Clone()
		moved.Status = models.StatusClaimed
		moved.AssignedAgent = agentID
		moved.Updated = now
		moved.History = append(moved.History, models.HistoryEntry{
			Timestamp: now,
			OldStatus: models.StatusUnclaimed,
			NewStatus: models.StatusClaimed,
			Actor:     agentID,
			Note:      "claimed",
		})

		working.Append(moved)
		backlog.Remove(taskID)

		claimed = moved.Clone()
		ev = transition{taskID, models.StatusUnclaimed, models.StatusClaimed, now}
		// Destination before source: a crash in between duplicates the
		// task, which Reconcile resolves; it never loses it.
		return []string{store.BoardWorking, store.BoardBacklog}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("claiming task %s: %w", taskID, err)
	}

	c.fire(ev)
	return &claimed, nil
}

// UpdateTask applies an owner-driven patch to a working-board task.
// Status changes through a patch are limited to the working/blocked
// oscillation (plus claimed -> working); completion and failure go
// through their dedicated operations.
func (c *coordinator) UpdateTask(taskID, agentID string, patch Patch) (*models.Task, error) {
	// Advisory context for dependency checks when the patch rewires them.
	var outside map[string]models.Task
	if patch.Dependencies != nil {
		snaps, err := c.loadAll()
		if err != nil {
			return nil, fmt.Errorf("updating task %s: %w", taskID, err)
		}
		outside = indexBoards(snaps)
	}

	var updated models.Task
	var ev *transition
	err := c.runUpdate([]string{store.BoardWorking}, func(snaps map[string]*models.Board) ([]string, error) {
		working := snaps[store.BoardWorking]
		task := working.Find(taskID)
		if task == nil {
			return nil, fmt.Errorf("task %s: %w on working board", taskID, ErrNotFound)
		}
		if task.AssignedAgent != agentID {
			return nil, fmt.Errorf("task %s: %w (owner %s, caller %s)", taskID, ErrPermission, task.AssignedAgent, agentID)
		}

		now := monotonicNow(task.Updated)
		patched := task.Clone()
		oldStatus := patched.Status

		if patch.Description != nil {
			patched.Description = *patch.Description
		}
		if patch.Priority != nil {
			patched.Priority = *patch.Priority
		}
		if patch.Dependencies != nil {
			patched.Dependencies = append([]string(nil), patch.Dependencies...)
		}
		for k, v := range patch.Extra {
			if patched.Extra == nil {
				patched.Extra = make(map[string]any)
			}
			patched.Extra[k] = v
		}
		if patch.Status != nil {
			next := *patch.Status
			if next != models.StatusWorking && next != models.StatusBlocked {
				return nil, fmt.Errorf("task %s: %w: %s -> %s is not an update transition", taskID, ErrInvalidTransition, oldStatus, next)
			}
			if next != oldStatus {
				if err := checkTransition(taskID, oldStatus, next); err != nil {
					return nil, err
				}
				patched.Status = next
			}
		}

		note := patch.Note
		if note == "" {
			note = "updated"
		}
		patched.Updated = now
		patched.History = append(patched.History, models.HistoryEntry{
			Timestamp: now,
			OldStatus: oldStatus,
			NewStatus: patched.Status,
			Actor:     agentID,
			Note:      note,
		})

		if err := c.validator.ValidateRecord(patched); err != nil {
			return nil, err
		}
		if patch.Dependencies != nil {
			index := make(map[string]models.Task, len(outside))
			for id, t := range outside {
				if id != taskID {
					index[id] = t
				}
			}
			if err := c.validator.CheckUpdate(patched, index); err != nil {
				return nil, err
			}
		}

		*task = patched
		updated = patched.Clone()
		if patched.Status != oldStatus {
			ev = &transition{taskID, oldStatus, patched.Status, now}
		}
		return []string{store.BoardWorking}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating task %s: %w", taskID, err)
	}

	if ev != nil {
		c.fire(*ev)
	}
	return &updated, nil
}

// CompleteTask moves an owner's working task to completed_pending_review
// and attaches the completion payload.
func (c *coordinator) CompleteTask(taskID, agentID, summary string, outputs map[string]any) (*models.Task, error) {
	return c.ownerTransition(taskID, agentID, models.StatusPendingReview, "completed; awaiting review", func(t *models.Task) {
		t.Summary = summary
		if outputs != nil {
			t.Outputs = outputs
		}
	})
}

// ApproveTask moves a task pending review to completed. Any reviewer
// identity may approve; ownership is not required.
func (c *coordinator) ApproveTask(taskID, reviewer string) (*models.Task, error) {
	if reviewer == "" {
		reviewer = "reviewer"
	}
	var approved models.Task
	var ev transition
	err := c.runUpdate([]string{store.BoardWorking}, func(snaps map[string]*models.Board) ([]string, error) {
		task := snaps[store.BoardWorking].Find(taskID)
		if task == nil {
			return nil, fmt.Errorf("task %s: %w on working board", taskID, ErrNotFound)
		}
		if err := checkTransition(taskID, task.Status, models.StatusCompleted); err != nil {
			return nil, err
		}

		now := monotonicNow(task.Updated)
		old := task.Status
		task.Status = models.StatusCompleted
		task.Updated = now
		task.History = append(task.History, models.HistoryEntry{
			Timestamp: now,
			OldStatus: old,
			NewStatus: models.StatusCompleted,
			Actor:     reviewer,
			Note:      "review approved",
		})

		approved = task.Clone()
		ev = transition{taskID, old, models.StatusCompleted, now}
		return []string{store.BoardWorking}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("approving task %s: %w", taskID, err)
	}

	c.fire(ev)
	return &approved, nil
}

// FailTask moves a task to failed from any non-terminal state. The task
// stays on the working board, visible for re-triage; it is never
// silently dropped. Failing a still-unclaimed task assigns it to the
// failing actor so the record keeps a responsible party.
func (c *coordinator) FailTask(taskID, actor, reason string) (*models.Task, error) {
	if actor == "" {
		return nil, fmt.Errorf("failing task %s: actor must not be empty", taskID)
	}

	var failed models.Task
	var ev transition
	boards := []string{store.BoardBacklog, store.BoardWorking}
	err := c.runUpdate(boards, func(snaps map[string]*models.Board) ([]string, error) {
		backlog := snaps[store.BoardBacklog]
		working := snaps[store.BoardWorking]

		if task := working.Find(taskID); task != nil {
			if err := checkTransition(taskID, task.Status, models.StatusFailed); err != nil {
				return nil, err
			}
			now := monotonicNow(task.Updated)
			old := task.Status
			task.Status = models.StatusFailed
			task.Updated = now
			task.History = append(task.History, models.HistoryEntry{
				Timestamp: now,
				OldStatus: old,
				NewStatus: models.StatusFailed,
				Actor:     actor,
				Note:      reason,
			})
			failed = task.Clone()
			ev = transition{taskID, old, models.StatusFailed, now}
			return []string{store.BoardWorking}, nil
		}

		if task := backlog.Find(taskID); task != nil {
			now := monotonicNow(task.Updated)
			moved := task.Clone()
			moved.Status = models.StatusFailed
			moved.AssignedAgent = actor
			moved.Updated = now
			moved.History = append(moved.History, models.HistoryEntry{
				Timestamp: now,
				OldStatus: models.StatusUnclaimed,
				NewStatus: models.StatusFailed,
				Actor:     actor,
				Note:      reason,
			})
			working.Append(moved)
			backlog.Remove(taskID)
			failed = moved.Clone()
			ev = transition{taskID, models.StatusUnclaimed, models.StatusFailed, now}
			return []string{store.BoardWorking, store.BoardBacklog}, nil
		}

		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	})
	if err != nil {
		return nil, fmt.Errorf("failing task %s: %w", taskID, err)
	}

	c.fire(ev)
	return &failed, nil
}

// ArchiveTask relocates a terminal task (completed or failed) from the
// working board into the archive. The record is moved, never deleted.
// Archiving an already-archived task fails with ErrNotFound: the second
// call must not be silently successful.
func (c *coordinator) ArchiveTask(taskID, actor string) error {
	if actor == "" {
		actor = "system"
	}

	var ev transition
	boards := []string{store.BoardWorking, store.BoardArchive}
	err := c.runUpdate(boards, func(snaps map[string]*models.Board) ([]string, error) {
		working := snaps[store.BoardWorking]
		archive := snaps[store.BoardArchive]

		task := working.Find(taskID)
		if task == nil {
			return nil, fmt.Errorf("task %s: %w on working board", taskID, ErrNotFound)
		}
		if !task.Status.IsTerminal() {
			return nil, fmt.Errorf("task %s: %w: %s -> %s", taskID, ErrInvalidTransition, task.Status, models.StatusArchived)
		}

		now := monotonicNow(task.Updated)
		old := task.Status
		moved := task.Clone()
		moved.Status = models.StatusArchived
		moved.AssignedAgent = ""
		moved.Updated = now
		moved.History = append(moved.History, models.HistoryEntry{
			Timestamp: now,
			OldStatus: old,
			NewStatus: models.StatusArchived,
			Actor:     actor,
			Note:      "archived",
		})

		archive.Append(moved)
		working.Remove(taskID)

		ev = transition{taskID, old, models.StatusArchived, now}
		return []string{store.BoardArchive, store.BoardWorking}, nil
	})
	if err != nil {
		return fmt.Errorf("archiving task %s: %w", taskID, err)
	}

	c.fire(ev)
	return nil
}

// GetTask returns a copy of the task and the name of the board holding it.
func (c *coordinator) GetTask(taskID string) (*models.Task, string, error) {
	snaps, err := c.loadAll()
	if err != nil {
		return nil, "", fmt.Errorf("getting task %s: %w", taskID, err)
	}
	for _, board := range boardNames() {
		if task := snaps[board].Find(taskID); task != nil {
			cp := task.Clone()
			return &cp, board, nil
		}
	}
	return nil, "", fmt.Errorf("task %s: %w", taskID, ErrNotFound)
}

// Boards returns a lock-free snapshot of every board.
func (c *coordinator) Boards() (map[string]*models.Board, error) {
	return c.loadAll()
}

// ownerTransition runs a working-board transition that requires the
// caller to own the task.
func (c *coordinator) ownerTransition(taskID, agentID string, to models.TaskStatus, note string, mutate func(*models.Task)) (*models.Task, error) {
	var result models.Task
	var ev transition
	err := c.runUpdate([]string{store.BoardWorking}, func(snaps map[string]*models.Board) ([]string, error) {
		task := snaps[store.BoardWorking].Find(taskID)
		if task == nil {
			return nil, fmt.Errorf("task %s: %w on working board", taskID, ErrNotFound)
		}
		if task.AssignedAgent != agentID {
			return nil, fmt.Errorf("task %s: %w (owner %s, caller %s)", taskID, ErrPermission, task.AssignedAgent, agentID)
		}
		if err := checkTransition(taskID, task.Status, to); err != nil {
			return nil, err
		}

		now := monotonicNow(task.Updated)
		old := task.Status
		if mutate != nil {
			mutate(task)
		}
		task.Status = to
		task.Updated = now
		task.History = append(task.History, models.HistoryEntry{
			Timestamp: now,
			OldStatus: old,
			NewStatus: to,
			Actor:     agentID,
			Note:      note,
		})

		result = task.Clone()
		ev = transition{taskID, old, to, now}
		return []string{store.BoardWorking}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transitioning task %s: %w", taskID, err)
	}

	c.fire(ev)
	return &result, nil
}

// runUpdate wraps store.Update with the corruption quarantine: a board
// that failed to load stays off-limits for mutations until Revalidate
// clears it.
func (c *coordinator) runUpdate(boards []string, fn func(snaps map[string]*models.Board) ([]string, error)) error {
	if err := c.checkQuarantine(boards); err != nil {
		return err
	}
	err := c.store.Update(boards, fn)
	if errors.Is(err, store.ErrCorruption) {
		c.quarantineBoards(boards, err)
	}
	return err
}

func (c *coordinator) checkQuarantine(boards []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, board := range boards {
		if cause, ok := c.quarantine[board]; ok {
			return fmt.Errorf("board %s: %w: %v", board, ErrBoardQuarantined, cause)
		}
	}
	return nil
}

// quarantineBoards marks every board of a failed critical section.
// Corruption is detected during load, before any of the section's
// boards were written, so over-marking is safe and Revalidate lifts the
// quarantine from the healthy ones.
func (c *coordinator) quarantineBoards(boards []string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, board := range boards {
		if _, ok := c.quarantine[board]; !ok {
			c.quarantine[board] = cause
		}
	}
}

func (c *coordinator) loadAll() (map[string]*models.Board, error) {
	snaps := make(map[string]*models.Board, 3)
	for _, board := range boardNames() {
		b, err := c.store.Load(board)
		if err != nil {
			return nil, err
		}
		snaps[board] = b
	}
	return snaps, nil
}

func (c *coordinator) fire(ev transition) {
	if c.notifier == nil {
		return
	}
	c.notifier.OnTransition(ev.taskID, ev.old, ev.new, ev.at)
}

func boardNames() []string {
	return []string{store.BoardBacklog, store.BoardWorking, store.BoardArchive}
}

// indexBoards flattens board snapshots into an id -> task index.
func indexBoards(snaps map[string]*models.Board) map[string]models.Task {
	index := make(map[string]models.Task)
	for _, b := range snaps {
		for i := range b.Tasks {
			index[b.Tasks[i].ID] = b.Tasks[i]
		}
	}
	return index
}

func indexBoard(b *models.Board) map[string]models.Task {
	index := make(map[string]models.Task, len(b.Tasks))
	for i := range b.Tasks {
		index[b.Tasks[i].ID] = b.Tasks[i]
	}
	return index
}

// dependenciesSatisfied reports whether every dependency reached
// completed. An archived dependency counts when it was archived from
// completed rather than failed.
func dependenciesSatisfied(task models.Task, index map[string]models.Task) bool {
	for _, dep := range task.Dependencies {
		t, ok := index[dep]
		if !ok {
			return false
		}
		switch t.Status {
		case models.StatusCompleted:
		case models.StatusArchived:
			last := t.LastTransition()
			if last == nil || last.OldStatus != models.StatusCompleted {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// monotonicNow returns the current time, clamped so the task's
// updated_at never moves backwards even across clock adjustments.
func monotonicNow(lastUpdated time.Time) time.Time {
	now := time.Now().UTC()
	if now.Before(lastUpdated) {
		return lastUpdated
	}
	return now
}
