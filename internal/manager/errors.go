package manager

import (
	"fmt"
	"strings"
)

// TaskNotFoundError reports an identifier that did not resolve to a task.
// For partial-identifier lookups matching more than one task it carries the
// shortened candidate ids.
type TaskNotFoundError struct {
	ID         string
	Candidates []string
}

func (e *TaskNotFoundError) Error() string {
	if e.Ambiguous() {
		return fmt.Sprintf("multiple tasks match %q: %s; provide more characters",
			e.ID, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("task %q not found", e.ID)
}

// Ambiguous reports whether the lookup failed because more than one task
// matched the partial identifier.
func (e *TaskNotFoundError) Ambiguous() bool {
	return len(e.Candidates) > 0
}

// PersistenceError reports a failed store statement or commit. When it is
// returned, the enclosing transaction has been rolled back and the cache is
// at its pre-operation state.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s task: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
