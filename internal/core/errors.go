package core

import "errors"

// Sentinel errors returned by coordinator operations. Validation,
// duplicate, dependency, lock, and corruption failures surface the
// sentinels of the packages that detect them (schema, lock, store);
// these cover the lifecycle-level failures.
var (
	// ErrNotFound is returned when a task is absent from the board an
	// operation targets, including archive of an already-archived task.
	ErrNotFound = errors.New("task not found")

	// ErrAlreadyClaimed is returned when a claim loses the race: the
	// task was no longer unclaimed at the instant the lock was held.
	ErrAlreadyClaimed = errors.New("task already claimed")

	// ErrPermission is returned when an agent operates on a task owned
	// by a different agent.
	ErrPermission = errors.New("task owned by another agent")

	// ErrInvalidTransition is returned for any status change outside
	// the lifecycle state machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrBoardQuarantined is returned for mutating operations against a
	// board whose artifact failed to load until Revalidate clears it.
	ErrBoardQuarantined = errors.New("board quarantined after corruption")
)
