package core

import (
	"fmt"

	"github.com/valter-silva-au/agentboard/internal/store"
	"github.com/valter-silva-au/agentboard/pkg/models"
)

// transitions enumerates the lifecycle state machine. Failure is
// reachable from every non-terminal state; everything else follows the
// single forward path with the blocked/working oscillation.
var transitions = map[models.TaskStatus][]models.TaskStatus{
	models.StatusUnclaimed:     {models.StatusClaimed, models.StatusFailed},
	models.StatusClaimed:       {models.StatusWorking, models.StatusFailed},
	models.StatusWorking:       {models.StatusBlocked, models.StatusPendingReview, models.StatusFailed},
	models.StatusBlocked:       {models.StatusWorking, models.StatusFailed},
	models.StatusPendingReview: {models.StatusCompleted, models.StatusFailed},
	models.StatusCompleted:     {models.StatusArchived},
	models.StatusFailed:        {models.StatusArchived},
	models.StatusArchived:      nil,
}

// canTransition reports whether from -> to is part of the state machine.
func canTransition(from, to models.TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns ErrInvalidTransition for any move outside the
// state machine, carrying the task id and both statuses.
func checkTransition(taskID string, from, to models.TaskStatus) error {
	if !canTransition(from, to) {
		return fmt.Errorf("task %s: %w: %s -> %s", taskID, ErrInvalidTransition, from, to)
	}
	return nil
}

// boardForStatus maps a status to the board that owns tasks in it.
// A task's location is a pure function of its status.
func boardForStatus(s models.TaskStatus) string {
	switch s {
	case models.StatusUnclaimed:
		return store.BoardBacklog
	case models.StatusArchived:
		return store.BoardArchive
	default:
		return store.BoardWorking
	}
}
