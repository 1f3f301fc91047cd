// Package schema validates task records against an explicit schema plus
// board-level referential checks: duplicate IDs, dependency resolution,
// and dependency-graph acyclicity. Validation never mutates a board; it
// is a pure function over a consistent snapshot.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/valter-silva-au/agentboard/pkg/models"
)

// Sentinel errors surfaced to coordinator callers.
var (
	ErrValidation           = errors.New("task record failed validation")
	ErrDuplicateTask        = errors.New("duplicate task id")
	ErrDependencyUnresolved = errors.New("unresolved dependency")
)

// Violation describes a single schema or invariant failure.
type Violation struct {
	Path    string
	Message string
}

func (v Violation) String() string {
	if v.Path == "" || v.Path == "/" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validator checks task records. It is safe for concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded task schema.
func NewValidator() *Validator {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource("task.schema.json", strings.NewReader(taskSchemaJSON)); err != nil {
		panic(fmt.Sprintf("adding task schema resource: %v", err))
	}
	return &Validator{schema: compiler.MustCompile("task.schema.json")}
}

// ValidateRecord checks a single task record against the schema and the
// record-local invariants the schema language cannot express. Board
// context (duplicates, dependency resolution) is checked separately by
// CheckNew and CheckUpdate.
func (v *Validator) ValidateRecord(task models.Task) error {
	violations, err := v.schemaViolations(task)
	if err != nil {
		return err
	}
	violations = append(violations, invariantViolations(task)...)

	if len(violations) > 0 {
		return violationError(task.ID, violations)
	}
	return nil
}

// schemaViolations runs the JSON Schema check over the record's wire form.
func (v *Validator) schemaViolations(task models.Task) ([]Violation, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("validating task %s: encoding record: %w", task.ID, err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("validating task %s: decoding record: %w", task.ID, err)
	}

	err = v.schema.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []Violation{{Message: err.Error()}}, nil
	}
	return collectViolations(ve, nil), nil
}

// collectViolations flattens a jsonschema error tree into leaf violations.
func collectViolations(ve *jsonschema.ValidationError, acc []Violation) []Violation {
	if len(ve.Causes) == 0 {
		return append(acc, Violation{Path: ve.InstanceLocation, Message: ve.Message})
	}
	for _, cause := range ve.Causes {
		acc = collectViolations(cause, acc)
	}
	return acc
}

// invariantViolations checks the cross-field rules: agent assignment is
// a function of status, timestamps are ordered, and the history tail
// matches the current status.
func invariantViolations(task models.Task) []Violation {
	var out []Violation

	if task.Status.Assigned() && task.AssignedAgent == "" {
		out = append(out, Violation{
			Path:    "/assigned_agent_id",
			Message: fmt.Sprintf("status %s requires an assigned agent", task.Status),
		})
	}
	if !task.Status.Assigned() && task.AssignedAgent != "" {
		out = append(out, Violation{
			Path:    "/assigned_agent_id",
			Message: fmt.Sprintf("status %s must not carry an assigned agent", task.Status),
		})
	}

	if task.Updated.Before(task.Created) {
		out = append(out, Violation{
			Path:    "/updated_at",
			Message: "updated_at precedes created_at",
		})
	}

	if last := task.LastTransition(); last != nil && last.NewStatus != task.Status {
		out = append(out, Violation{
			Path:    "/history",
			Message: fmt.Sprintf("last history entry ends at %s but task status is %s", last.NewStatus, task.Status),
		})
	}

	for i, dep := range task.Dependencies {
		if dep == task.ID {
			out = append(out, Violation{
				Path:    fmt.Sprintf("/dependencies/%d", i),
				Message: "task depends on itself",
			})
		}
	}

	prev := task.Created
	for i, h := range task.History {
		if h.Timestamp.Before(prev) {
			out = append(out, Violation{
				Path:    fmt.Sprintf("/history/%d/timestamp", i),
				Message: "history timestamps must be non-decreasing",
			})
		}
		prev = h.Timestamp
	}

	return out
}

// CheckNew validates a candidate record against the existing task index:
// the ID must be unused, every dependency must already exist (forward
// references are rejected at creation time), and the resulting graph
// must stay acyclic.
func (v *Validator) CheckNew(task models.Task, existing map[string]models.Task) error {
	if _, ok := existing[task.ID]; ok {
		return fmt.Errorf("adding task %s: %w", task.ID, ErrDuplicateTask)
	}
	return v.checkDependencies(task, existing)
}

// CheckUpdate validates a patched record against the existing index.
// The record itself is expected to already exist.
func (v *Validator) CheckUpdate(task models.Task, existing map[string]models.Task) error {
	return v.checkDependencies(task, existing)
}

func (v *Validator) checkDependencies(task models.Task, existing map[string]models.Task) error {
	for _, dep := range task.Dependencies {
		if dep == task.ID {
			return fmt.Errorf("task %s: %w: dependency cycle: %s -> %s", task.ID, ErrDependencyUnresolved, task.ID, task.ID)
		}
		if _, ok := existing[dep]; !ok {
			return fmt.Errorf("task %s: %w: dependency %s does not exist", task.ID, ErrDependencyUnresolved, dep)
		}
	}

	if cycle := findCycle(task, existing); cycle != nil {
		return fmt.Errorf("task %s: %w: dependency cycle: %s", task.ID, ErrDependencyUnresolved, strings.Join(cycle, " -> "))
	}
	return nil
}

// findCycle runs a DFS over the dependency graph formed by the existing
// index with the candidate record layered on top. It returns the cycle
// path when the candidate participates in one, or nil.
func findCycle(task models.Task, existing map[string]models.Task) []string {
	deps := func(id string) []string {
		if id == task.ID {
			return task.Dependencies
		}
		if t, ok := existing[id]; ok {
			return t.Dependencies
		}
		return nil
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int)
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = inStack
		stack = append(stack, id)
		for _, dep := range deps(id) {
			switch state[dep] {
			case inStack:
				// Slice the stack from the first occurrence of dep to
				// report the actual cycle path.
				for i, s := range stack {
					if s == dep {
						return append(append([]string(nil), stack[i:]...), dep)
					}
				}
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	return visit(task.ID)
}

func violationError(taskID string, violations []Violation) error {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return fmt.Errorf("task %s: %w: %s", taskID, ErrValidation, strings.Join(parts, "; "))
}
