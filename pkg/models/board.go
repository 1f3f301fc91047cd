package models

// BoardVersion is the schema version written into every board artifact.
const BoardVersion = "1.0"

// Board is a named, ordered collection of tasks representing one
// lifecycle partition. The on-disk form is one YAML file per board.
type Board struct {
	Version string `yaml:"version"`
	Name    string `yaml:"name"`
	Tasks   []Task `yaml:"tasks"`
}

// NewBoard returns an empty board with the current schema version.
func NewBoard(name string) *Board {
	return &Board{
		Version: BoardVersion,
		Name:    name,
		Tasks:   []Task{},
	}
}

// Find returns a pointer to the task with the given ID, or nil.
// The pointer addresses the board's own storage; callers that hand
// tasks outward should Clone first.
func (b *Board) Find(taskID string) *Task {
	for i := range b.Tasks {
		if b.Tasks[i].ID == taskID {
			return &b.Tasks[i]
		}
	}
	return nil
}

// Append adds a task to the end of the board.
func (b *Board) Append(t Task) {
	b.Tasks = append(b.Tasks, t)
}

// Remove deletes the task with the given ID, preserving the order of
// the remaining tasks. It reports whether a task was removed.
func (b *Board) Remove(taskID string) bool {
	for i := range b.Tasks {
		if b.Tasks[i].ID == taskID {
			b.Tasks = append(b.Tasks[:i], b.Tasks[i+1:]...)
			return true
		}
	}
	return false
}

// CountByStatus returns the number of tasks per status on the board.
func (b *Board) CountByStatus() map[TaskStatus]int {
	counts := make(map[TaskStatus]int)
	for i := range b.Tasks {
		counts[b.Tasks[i].Status]++
	}
	return counts
}
