package manager

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/constants"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/models"
	"github.com/rodriguezjasonlloyd/seven-gen-task/internal/store"
)

// Statement shapes issued against the store. Updates are built dynamically
// from the changed columns; see buildUpdateStatement.
const (
	stmtSelectAll  = "SELECT * FROM tasks"
	stmtSelectByID = "SELECT * FROM tasks WHERE id = ?"
	stmtInsert     = "INSERT INTO tasks (id, title, description, due_date, priority, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	stmtDeleteByID = "DELETE FROM tasks WHERE id = ?"
)

// shortIDLength is how many id characters ambiguous-match errors report.
const shortIDLength = 8

// TaskManager owns the in-memory task cache and keeps it consistent with the
// backing store. Every mutation is written through: persist, commit, then
// update the cache; on failure the transaction is rolled back and the cache
// left untouched. The cache is the read path, the store the durability path.
//
// A single mutex serializes all callers, covering both the cache and the
// connector's one open transaction.
type TaskManager struct {
	mu    sync.Mutex
	store store.Connector
	cache map[string]*models.Task
}

// NewTaskManager creates a TaskManager with an empty cache. Call Load to
// populate it from the store.
func NewTaskManager(conn store.Connector) *TaskManager {
	return &TaskManager{
		store: conn,
		cache: make(map[string]*models.Task),
	}
}

// Load populates the cache from the store. A load failure is not fatal: the
// manager stays usable with an empty cache, and the error is returned so the
// caller can log it as a warning.
func (m *TaskManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.store.Query(stmtSelectAll)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	for _, record := range records {
		task, err := models.FromRecord(record)
		if err != nil {
			log.Printf("Warning: skipping malformed task row %q: %v", record.ID, err)
			continue
		}
		m.cache[task.ID] = task
	}
	return nil
}

// Count returns the number of cached tasks.
func (m *TaskManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

// CreateTaskInput holds the caller-supplied fields for a new task. Status
// defaults to PENDING when empty.
type CreateTaskInput struct {
	Title       string
	Description *string
	DueDate     *time.Time
	Priority    models.Priority
	Status      models.Status
}

// CreateTask constructs, persists and caches a new task. Validation failures
// surface before the store is touched.
func (m *TaskManager) CreateTask(input CreateTaskInput) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := models.NewTask(models.NewTaskInput{
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Priority:    input.Priority,
		Status:      input.Status,
	})
	if err != nil {
		return nil, err
	}

	record := task.Record()
	err = m.store.Execute(stmtInsert,
		record.ID,
		record.Title,
		record.Description,
		record.DueDate,
		record.Priority,
		record.Status,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		m.rollback()
		return nil, &PersistenceError{Op: "add", Err: err}
	}
	if err := m.store.Commit(); err != nil {
		m.rollback()
		return nil, &PersistenceError{Op: "add", Err: err}
	}

	m.cache[task.ID] = task
	return task, nil
}

// GetTask resolves a task by its exact id: from the cache when present,
// otherwise from the store, caching a hit.
func (m *TaskManager) GetTask(id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(id)
}

func (m *TaskManager) getLocked(id string) (*models.Task, error) {
	if task, ok := m.cache[id]; ok {
		return task, nil
	}

	records, err := m.store.Query(stmtSelectByID, id)
	if err != nil {
		return nil, &PersistenceError{Op: "retrieve", Err: err}
	}
	if len(records) == 0 {
		return nil, &TaskNotFoundError{ID: id}
	}

	task, err := models.FromRecord(records[0])
	if err != nil {
		return nil, fmt.Errorf("stored task %q is malformed: %w", id, err)
	}
	m.cache[task.ID] = task
	return task, nil
}

// GetTaskByPartialID resolves a task by an id prefix. It consults only the
// cache: exactly one match returns the task, zero or multiple matches fail
// with TaskNotFoundError, the ambiguous case listing shortened candidate ids.
func (m *TaskManager) GetTaskByPartialID(prefix string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*models.Task
	for id, task := range m.cache {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, task)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &TaskNotFoundError{ID: prefix}
	case 1:
		return matches[0], nil
	}

	candidates := make([]string, len(matches))
	for i, task := range matches {
		candidates[i] = shortID(task.ID)
	}
	sort.Strings(candidates)
	return nil, &TaskNotFoundError{ID: prefix, Candidates: candidates}
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

// SortKey selects the ordering of ListTasks results.
type SortKey string

const (
	SortDueDateAsc   SortKey = "due_date_asc"
	SortDueDateDesc  SortKey = "due_date_desc"
	SortPriorityHigh SortKey = "priority_high"
	SortPriorityLow  SortKey = "priority_low"
	SortCreatedAsc   SortKey = "created_asc"
	SortCreatedDesc  SortKey = "created_desc"
	SortStatus       SortKey = "status"
)

// ParseSortKey validates a sort key string. The empty string means no
// ordering.
func ParseSortKey(value string) (SortKey, error) {
	switch k := SortKey(value); k {
	case "", SortDueDateAsc, SortDueDateDesc, SortPriorityHigh, SortPriorityLow,
		SortCreatedAsc, SortCreatedDesc, SortStatus:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", value)
}

// ListTasks returns every cached task, ordered by the sort key. An empty key
// returns them in cache iteration order.
func (m *TaskManager) ListTasks(key SortKey) []*models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := m.snapshotLocked()
	SortTasks(tasks, key)
	return tasks
}

func (m *TaskManager) snapshotLocked() []*models.Task {
	tasks := make([]*models.Task, 0, len(m.cache))
	for _, task := range m.cache {
		tasks = append(tasks, task)
	}
	return tasks
}

// SortTasks orders tasks in place by the sort key. Tasks with no due date
// sort last under both due-date orderings. The sort is stable for equal keys.
func SortTasks(tasks []*models.Task, key SortKey) {
	switch key {
	case SortDueDateAsc:
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i].DueDate, tasks[j].DueDate
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.Before(*b)
		})
	case SortDueDateDesc:
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i].DueDate, tasks[j].DueDate
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.After(*b)
		})
	case SortPriorityHigh:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Priority.Weight() > tasks[j].Priority.Weight()
		})
	case SortPriorityLow:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Priority.Weight() < tasks[j].Priority.Weight()
		})
	case SortCreatedAsc:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		})
	case SortCreatedDesc:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		})
	case SortStatus:
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Status < tasks[j].Status
		})
	}
}

// TaskFilter holds conjunctive predicates for FilterTasks. Nil fields are
// unconstrained. Tasks with no due date never match a due-date predicate.
type TaskFilter struct {
	Status    *models.Status
	Priority  *models.Priority
	DueBefore *time.Time
	DueAfter  *time.Time
	DueOn     *time.Time
}

func (f TaskFilter) matches(task *models.Task) bool {
	if f.Status != nil && task.Status != *f.Status {
		return false
	}
	if f.Priority != nil && task.Priority != *f.Priority {
		return false
	}
	if f.DueBefore != nil || f.DueAfter != nil || f.DueOn != nil {
		if task.DueDate == nil {
			return false
		}
		if f.DueBefore != nil && !task.DueDate.Before(*f.DueBefore) {
			return false
		}
		if f.DueAfter != nil && !task.DueDate.After(*f.DueAfter) {
			return false
		}
		if f.DueOn != nil && !sameDay(*task.DueDate, *f.DueOn) {
			return false
		}
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FilterTasks returns the cached tasks matching every supplied predicate. An
// empty filter returns every task.
func (m *TaskManager) FilterTasks(filter TaskFilter) []*models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.Task
	for _, task := range m.cache {
		if filter.matches(task) {
			matched = append(matched, task)
		}
	}
	return matched
}

// UpdateTask applies a partial update to a task and persists the changed
// columns plus the refreshed updated_at. The update is applied to a copy so
// a failed persist never leaves the cache ahead of the store.
func (m *TaskManager) UpdateTask(id string, update models.TaskUpdate) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.getLocked(id)
	if err != nil {
		return nil, err
	}
	if update.Empty() {
		return task, nil
	}

	next := task.Clone()
	if err := next.ApplyUpdates(update); err != nil {
		return nil, err
	}

	statement, args := buildUpdateStatement(next, update)
	if err := m.store.Execute(statement, args...); err != nil {
		m.rollback()
		return nil, &PersistenceError{Op: "update", Err: err}
	}
	if err := m.store.Commit(); err != nil {
		m.rollback()
		return nil, &PersistenceError{Op: "update", Err: err}
	}

	m.cache[next.ID] = next
	return next, nil
}

// buildUpdateStatement assembles an UPDATE over exactly the columns the
// update touched, plus updated_at. Values come from the already-mutated task.
func buildUpdateStatement(task *models.Task, update models.TaskUpdate) (string, []interface{}) {
	var (
		columns []string
		args    []interface{}
	)
	record := task.Record()

	if update.Title != nil {
		columns = append(columns, "title = ?")
		args = append(args, record.Title)
	}
	if update.Description != nil {
		columns = append(columns, "description = ?")
		args = append(args, record.Description)
	}
	if update.DueDate != nil || update.ClearDueDate {
		columns = append(columns, "due_date = ?")
		args = append(args, record.DueDate)
	}
	if update.Priority != nil {
		columns = append(columns, "priority = ?")
		args = append(args, record.Priority)
	}
	if update.Status != nil {
		columns = append(columns, "status = ?")
		args = append(args, record.Status)
	}

	columns = append(columns, "updated_at = ?")
	args = append(args, record.UpdatedAt, record.ID)

	return fmt.Sprintf("UPDATE tasks SET %s WHERE id = ?", strings.Join(columns, ", ")), args
}

// MarkTaskComplete sets a task's status to COMPLETED.
func (m *TaskManager) MarkTaskComplete(id string) (*models.Task, error) {
	status := models.StatusCompleted
	return m.UpdateTask(id, models.TaskUpdate{Status: &status})
}

// DeleteTask removes a task from the store and then from the cache. On a
// persistence failure the cache entry is retained.
func (m *TaskManager) DeleteTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.getLocked(id); err != nil {
		return err
	}

	if err := m.store.Execute(stmtDeleteByID, id); err != nil {
		m.rollback()
		return &PersistenceError{Op: "delete", Err: err}
	}
	if err := m.store.Commit(); err != nil {
		m.rollback()
		return &PersistenceError{Op: "delete", Err: err}
	}

	delete(m.cache, id)
	return nil
}

// Statistics aggregates the cached tasks. ByStatus and ByPriority always
// carry every enum value; their counts each sum to Total. Overdue and
// DueSoon are mutually exclusive: an overdue task is never also due soon.
type Statistics struct {
	Total      int
	ByStatus   map[models.Status]int
	ByPriority map[models.Priority]int
	Overdue    int
	DueSoon    int
}

// Statistics computes aggregate counts over the full cache.
func (m *TaskManager) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Statistics{
		ByStatus: map[models.Status]int{
			models.StatusPending:    0,
			models.StatusInProgress: 0,
			models.StatusCompleted:  0,
		},
		ByPriority: map[models.Priority]int{
			models.PriorityLow:    0,
			models.PriorityMedium: 0,
			models.PriorityHigh:   0,
		},
	}

	now := time.Now()
	dueSoonCutoff := now.Add(constants.DueSoonWindowDays * 24 * time.Hour)

	for _, task := range m.cache {
		stats.Total++
		stats.ByStatus[task.Status]++
		stats.ByPriority[task.Priority]++

		if task.DueDate == nil || task.Status == models.StatusCompleted {
			continue
		}
		switch {
		case task.DueDate.Before(now):
			stats.Overdue++
		case !task.DueDate.After(dueSoonCutoff):
			stats.DueSoon++
		}
	}

	return stats
}

func (m *TaskManager) rollback() {
	if err := m.store.Rollback(); err != nil {
		log.Printf("Warning: rollback failed: %v", err)
	}
}
