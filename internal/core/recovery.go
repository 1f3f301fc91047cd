package core

import (
	"errors"
	"fmt"

	"github.com/valter-silva-au/agentboard/internal/store"
	"github.com/valter-silva-au/agentboard/pkg/models"
)

// ReconcileAction records one repair made by Reconcile.
type ReconcileAction struct {
	TaskID       string
	KeptBoard    string
	DroppedBoard string
}

// Reconcile repairs the aftermath of an interrupted relocation: a
// process killed between the destination write and the source write
// leaves the same task on two boards. For each duplicate the copy whose
// board matches its status is kept (relocations write the destination
// first, so that copy carries the completed transition) and the stale
// copy is dropped. No task record is ever deleted outright.
func (c *coordinator) Reconcile() ([]ReconcileAction, error) {
	var actions []ReconcileAction
	err := c.runUpdate(boardNames(), func(snaps map[string]*models.Board) ([]string, error) {
		seen := make(map[string][]string) // task id -> boards holding it
		for _, board := range boardNames() {
			for i := range snaps[board].Tasks {
				id := snaps[board].Tasks[i].ID
				seen[id] = append(seen[id], board)
			}
		}

		dirtySet := make(map[string]bool)
		for id, boards := range seen {
			if len(boards) < 2 {
				continue
			}
			keep := pickCanonical(id, boards, snaps)
			for _, board := range boards {
				if board == keep {
					continue
				}
				snaps[board].Remove(id)
				dirtySet[board] = true
				actions = append(actions, ReconcileAction{
					TaskID:       id,
					KeptBoard:    keep,
					DroppedBoard: board,
				})
			}
		}

		var dirty []string
		for _, board := range boardNames() {
			if dirtySet[board] {
				dirty = append(dirty, board)
			}
		}
		return dirty, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconciling boards: %w", err)
	}
	return actions, nil
}

// pickCanonical chooses which duplicate copy survives: the one whose
// status maps to the board it sits on. When no copy is in its proper
// board (should not happen), the one with the longest history wins as
// the most advanced record.
func pickCanonical(taskID string, boards []string, snaps map[string]*models.Board) string {
	best := boards[0]
	bestHistory := -1
	for _, board := range boards {
		task := snaps[board].Find(taskID)
		if task == nil {
			continue
		}
		if boardForStatus(task.Status) == board {
			return board
		}
		if len(task.History) > bestHistory {
			best = board
			bestHistory = len(task.History)
		}
	}
	return best
}

// Revalidate attempts to lift a corruption quarantine: the board
// artifact is reloaded and, when it parses cleanly again (after an
// external repair), mutations resume. The load failure is returned
// while the artifact is still broken.
func (c *coordinator) Revalidate(board string) error {
	_, err := c.store.Load(board)
	if err != nil {
		if errors.Is(err, store.ErrCorruption) {
			c.quarantineBoards([]string{board}, err)
		}
		return fmt.Errorf("revalidating board %s: %w", board, err)
	}

	c.mu.Lock()
	delete(c.quarantine, board)
	c.mu.Unlock()
	return nil
}
