package dto

import (
	"time"

	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/manager"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/models"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/utils"
)

// CreateTaskRequest is the body of POST /api/tasks. Priority and status are
// accepted as their canonical strings and parsed at the handler boundary.
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Priority    string     `json:"priority" binding:"required"`
	Status      string     `json:"status"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	DueDate     *time.Time      `json:"due_date"`
	Priority    models.Priority `json:"priority"`
	Status      models.Status   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// StatisticsDTO represents the aggregate counts in API responses. The
// by_status and by_priority maps are keyed by the canonical enum strings and
// always carry every value.
type StatisticsDTO struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
	Overdue    int            `json:"overdue"`
	DueSoon    int            `json:"due_soon"`
}

// Conversion functions

// ToTaskDTO converts a Task to its response shape
func ToTaskDTO(task *models.Task) TaskDTO {
	return TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		DueDate:     task.DueDate,
		Priority:    task.Priority,
		Status:      task.Status,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// ToTaskListResponse converts a page of tasks plus the full count to the
// list response shape
func ToTaskListResponse(tasks []*models.Task, params utils.PaginationParams, total int64) TaskListResponse {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}

	return TaskListResponse{
		Tasks: items,
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	}
}

// ToStatisticsDTO converts coordinator statistics to the response shape
func ToStatisticsDTO(stats manager.Statistics) StatisticsDTO {
	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	byPriority := make(map[string]int, len(stats.ByPriority))
	for priority, count := range stats.ByPriority {
		byPriority[string(priority)] = count
	}

	return StatisticsDTO{
		Total:      stats.Total,
		ByStatus:   byStatus,
		ByPriority: byPriority,
		Overdue:    stats.Overdue,
		DueSoon:    stats.DueSoon,
	}
}
