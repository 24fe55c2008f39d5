package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/dto"
	apierrors "github.com/rodriguezjasonlloyd/seven-gen-task/internal/errors"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/manager"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/models"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/utils"
)

// fullIDLength is the length of a canonical UUID string. Shorter path ids
// are resolved as prefixes.
const fullIDLength = 36

type TaskHandler struct {
	manager *manager.TaskManager
}

func NewTaskHandler(m *manager.TaskManager) *TaskHandler {
	return &TaskHandler{manager: m}
}

// RegisterRoutes wires the task endpoints onto a router.
func RegisterRoutes(r *gin.Engine, h *TaskHandler) {
	api := r.Group("/api")
	{
		tasks := api.Group("/tasks")
		{
			tasks.GET("", h.ListTasks)
			tasks.POST("", h.CreateTask)
			tasks.GET("/:id", h.GetTask)
			tasks.PATCH("/:id", h.UpdateTask)
			tasks.POST("/:id/complete", h.CompleteTask)
			tasks.DELETE("/:id", h.DeleteTask)
		}
		api.GET("/statistics", h.GetStatistics)
	}
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	priority, err := models.ParsePriority(req.Priority)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	input := manager.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    priority,
	}
	if req.Status != "" {
		status, err := models.ParseStatus(req.Status)
		if err != nil {
			apierrors.BadRequest(c, err.Error())
			return
		}
		input.Status = status
	}

	task, err := h.manager.CreateTask(input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(task))
}

// ListTasks returns tasks, optionally filtered, sorted and paginated
func (h *TaskHandler) ListTasks(c *gin.Context) {
	sortKey, err := manager.ParseSortKey(c.Query("sort"))
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	tasks := h.manager.FilterTasks(filter)
	manager.SortTasks(tasks, sortKey)

	params := utils.GetPaginationParams(c)
	page := utils.Page(tasks, params)

	c.JSON(http.StatusOK, dto.ToTaskListResponse(page, params, int64(len(tasks))))
}

// parseFilter builds the filter from query parameters, responding with a 400
// itself when one is invalid.
func (h *TaskHandler) parseFilter(c *gin.Context) (manager.TaskFilter, bool) {
	var filter manager.TaskFilter

	if value := c.Query("status"); value != "" {
		status, err := models.ParseStatus(value)
		if err != nil {
			apierrors.BadRequest(c, err.Error())
			return filter, false
		}
		filter.Status = &status
	}
	if value := c.Query("priority"); value != "" {
		priority, err := models.ParsePriority(value)
		if err != nil {
			apierrors.BadRequest(c, err.Error())
			return filter, false
		}
		filter.Priority = &priority
	}

	dates := []struct {
		param string
		dest  **time.Time
	}{
		{"due_before", &filter.DueBefore},
		{"due_after", &filter.DueAfter},
		{"due_on", &filter.DueOn},
	}
	for _, d := range dates {
		value := c.Query(d.param)
		if value == "" {
			continue
		}
		parsed, err := parseDate(value)
		if err != nil {
			apierrors.BadRequest(c, fmt.Sprintf("invalid %s: %v", d.param, err))
			return filter, false
		}
		*d.dest = &parsed
	}

	return filter, true
}

// GetTask returns a task by full or partial id
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.resolveTask(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToTaskDTO(task))
}

// UpdateTask applies a partial update to a task
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	task, err := h.resolveTask(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	// Parse raw JSON to tell provided-but-null apart from absent.
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	update, err := buildTaskUpdate(raw)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	updated, err := h.manager.UpdateTask(task.ID, update)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(updated))
}

// CompleteTask marks a task as completed
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	task, err := h.resolveTask(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	completed, err := h.manager.MarkTaskComplete(task.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(completed))
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	task, err := h.resolveTask(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.manager.DeleteTask(task.ID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetStatistics returns aggregate counts over all tasks
func (h *TaskHandler) GetStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ToStatisticsDTO(h.manager.Statistics()))
}

func (h *TaskHandler) resolveTask(id string) (*models.Task, error) {
	if len(id) >= fullIDLength {
		return h.manager.GetTask(id)
	}
	return h.manager.GetTaskByPartialID(id)
}

// buildTaskUpdate converts a raw PATCH body into a TaskUpdate. A null
// due_date clears the due date; a null or empty description clears the
// description.
func buildTaskUpdate(raw map[string]interface{}) (models.TaskUpdate, error) {
	var update models.TaskUpdate

	if value, ok := raw["title"]; ok {
		title, ok := value.(string)
		if !ok {
			return update, fmt.Errorf("title must be a string")
		}
		update.Title = &title
	}
	if value, ok := raw["description"]; ok {
		if value == nil {
			empty := ""
			update.Description = &empty
		} else {
			description, ok := value.(string)
			if !ok {
				return update, fmt.Errorf("description must be a string")
			}
			update.Description = &description
		}
	}
	if value, ok := raw["due_date"]; ok {
		if value == nil {
			update.ClearDueDate = true
		} else {
			dueDateStr, ok := value.(string)
			if !ok {
				return update, fmt.Errorf("due_date must be a string")
			}
			dueDate, err := parseDate(dueDateStr)
			if err != nil {
				return update, fmt.Errorf("invalid due_date: %v", err)
			}
			update.DueDate = &dueDate
		}
	}
	if value, ok := raw["priority"]; ok {
		priorityStr, ok := value.(string)
		if !ok {
			return update, fmt.Errorf("priority must be a string")
		}
		priority, err := models.ParsePriority(priorityStr)
		if err != nil {
			return update, err
		}
		update.Priority = &priority
	}
	if value, ok := raw["status"]; ok {
		statusStr, ok := value.(string)
		if !ok {
			return update, fmt.Errorf("status must be a string")
		}
		status, err := models.ParseStatus(statusStr)
		if err != nil {
			return update, err
		}
		update.Status = &status
	}

	return update, nil
}

// parseDate accepts RFC 3339 timestamps and bare dates.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

// respondError maps domain errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *models.ValidationError
		notFoundErr   *manager.TaskNotFoundError
		persistErr    *manager.PersistenceError
	)
	switch {
	case errors.As(err, &validationErr):
		apierrors.BadRequest(c, validationErr.Message)
	case errors.As(err, &notFoundErr):
		if notFoundErr.Ambiguous() {
			apierrors.AmbiguousIdentifier(c, notFoundErr.Error(), notFoundErr.Candidates)
		} else {
			apierrors.NotFound(c, notFoundErr.Error())
		}
	case errors.As(err, &persistErr):
		apierrors.OperationFailed(c, persistErr.Error())
	default:
		apierrors.InternalError(c, "")
	}
}
