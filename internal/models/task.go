package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/constants"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Weight returns the numeric rank used when ordering by priority.
// Unrecognized values rank below LOW.
func (p Priority) Weight() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ParsePriority converts a stored or user-supplied string into a Priority.
// Unknown values are rejected.
func ParsePriority(value string) (Priority, error) {
	switch p := Priority(value); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	}
	return "", newValidationError("invalid priority %q: must be one of LOW, MEDIUM, HIGH", value)
}

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// ParseStatus converts a stored or user-supplied string into a Status.
// Unknown values are rejected.
func ParseStatus(value string) (Status, error) {
	switch s := Status(value); s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return s, nil
	}
	return "", newValidationError("invalid status %q: must be one of PENDING, IN_PROGRESS, COMPLETED", value)
}

// ValidationError reports a task field that violates an entity invariant.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Task is the persisted entity. Fields are validated on construction and
// after every mutation; persistence is handled elsewhere.
type Task struct {
	ID          string
	Title       string
	Description *string
	DueDate     *time.Time
	Priority    Priority
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTaskInput holds the fields for constructing a Task. ID, Status and the
// timestamps are optional: a missing ID is generated, a missing status
// defaults to PENDING and missing timestamps default to now.
type NewTaskInput struct {
	ID          string
	Title       string
	Description *string
	DueDate     *time.Time
	Priority    Priority
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTask constructs and validates a Task.
func NewTask(input NewTaskInput) (*Task, error) {
	task := &Task{
		ID:          input.ID,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Priority:    input.Priority,
		Status:      input.Status,
		CreatedAt:   input.CreatedAt,
		UpdatedAt:   input.UpdatedAt,
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = StatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks every field invariant.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return newValidationError("title cannot be empty")
	}
	if utf8.RuneCountInString(t.Title) > constants.MaxTitleLength {
		return newValidationError("title cannot exceed %d characters", constants.MaxTitleLength)
	}
	if t.Description != nil && utf8.RuneCountInString(*t.Description) > constants.MaxDescriptionLength {
		return newValidationError("description cannot exceed %d characters", constants.MaxDescriptionLength)
	}
	if _, err := ParsePriority(string(t.Priority)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(t.Status)); err != nil {
		return err
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		return newValidationError("updated_at cannot precede created_at")
	}
	return nil
}

// TaskUpdate describes a partial update. Nil fields are left untouched.
// A pointer to an empty description clears the description; ClearDueDate
// clears the due date and wins over DueDate when both are set.
type TaskUpdate struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	Priority     *Priority
	Status       *Status
}

// Empty reports whether the update touches no fields.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.DueDate == nil &&
		!u.ClearDueDate && u.Priority == nil && u.Status == nil
}

// ApplyUpdates mutates the supplied fields, refreshes UpdatedAt and
// re-validates. The task is left unchanged when validation fails.
func (t *Task) ApplyUpdates(update TaskUpdate) error {
	next := *t

	if update.Title != nil {
		next.Title = *update.Title
	}
	if update.Description != nil {
		if *update.Description == "" {
			next.Description = nil
		} else {
			description := *update.Description
			next.Description = &description
		}
	}
	if update.ClearDueDate {
		next.DueDate = nil
	} else if update.DueDate != nil {
		dueDate := *update.DueDate
		next.DueDate = &dueDate
	}
	if update.Priority != nil {
		next.Priority = *update.Priority
	}
	if update.Status != nil {
		next.Status = *update.Status
	}
	next.UpdatedAt = time.Now()

	if err := next.Validate(); err != nil {
		return err
	}

	*t = next
	return nil
}

// MarkCompleted sets the status to COMPLETED and refreshes UpdatedAt.
// Safe to call on an already completed task.
func (t *Task) MarkCompleted() {
	t.Status = StatusCompleted
	t.UpdatedAt = time.Now()
}

// Clone returns a deep copy sharing no pointers with the original.
func (t *Task) Clone() *Task {
	clone := *t
	if t.Description != nil {
		description := *t.Description
		clone.Description = &description
	}
	if t.DueDate != nil {
		dueDate := *t.DueDate
		clone.DueDate = &dueDate
	}
	return &clone
}
