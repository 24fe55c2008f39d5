package models

import (
	"time"
)

// TaskRecord is the flat row shape stored in the tasks table: one row per
// task, enum fields persisted as their canonical strings.
type TaskRecord struct {
	ID          string     `gorm:"column:id;primaryKey;size:36"`
	Title       string     `gorm:"column:title;size:100;not null"`
	Description *string    `gorm:"column:description;size:500"`
	DueDate     *time.Time `gorm:"column:due_date"`
	Priority    string     `gorm:"column:priority;size:10;not null"`
	Status      string     `gorm:"column:status;size:20;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null"`
}

func (TaskRecord) TableName() string {
	return "tasks"
}

// Record converts the task to its persisted row shape. The record shares no
// pointers with the task.
func (t *Task) Record() TaskRecord {
	record := TaskRecord{
		ID:        t.ID,
		Title:     t.Title,
		Priority:  string(t.Priority),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Description != nil {
		description := *t.Description
		record.Description = &description
	}
	if t.DueDate != nil {
		dueDate := *t.DueDate
		record.DueDate = &dueDate
	}
	return record
}

// FromRecord rebuilds a task from a stored row. Rows missing required fields
// or carrying unrecognized enum values are rejected.
func FromRecord(record TaskRecord) (*Task, error) {
	if record.ID == "" || record.Title == "" || record.Priority == "" || record.Status == "" ||
		record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return nil, newValidationError("task record is missing required fields")
	}

	priority, err := ParsePriority(record.Priority)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(record.Status)
	if err != nil {
		return nil, err
	}

	return NewTask(NewTaskInput{
		ID:          record.ID,
		Title:       record.Title,
		Description: record.Description,
		DueDate:     record.DueDate,
		Priority:    priority,
		Status:      status,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	})
}
